package codec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

type stubCodec struct {
	BaseCodec
}

func (s *stubCodec) Capacity(*grid.Grid, []byte, Params) (int, error) { return 0, nil }
func (s *stubCodec) Embed(g *grid.Grid, _ []byte, p Params) (*grid.Grid, Params, error) {
	return g.Clone(), p, nil
}
func (s *stubCodec) Extract(*grid.Grid, Params) ([]byte, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubCodec{NewBaseCodec(MethodIMNP, "IMNP", "stub", grid.Gray)})
	r.Register(&stubCodec{NewBaseCodec(MethodBitPlane, "Bit plane", "stub", grid.Gray)})

	c, err := r.Get(MethodIMNP)
	require.NoError(t, err)
	assert.Equal(t, "IMNP", c.Name())

	_, err = r.Get(MethodCDB)
	assert.ErrorIs(t, err, stegerr.ErrUnknownMethod)

	assert.Equal(t, []Method{MethodBitPlane, MethodIMNP}, r.Methods())
}

func TestBaseCodec_CheckGrid(t *testing.T) {
	b := NewBaseCodec(MethodCDB, "CDB", "", grid.RGB)
	g, err := grid.NewGray(2, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, b.CheckGrid(g), stegerr.ErrChannelMismatch)
	assert.Error(t, b.CheckGrid(nil))
}

func TestParamsAs(t *testing.T) {
	p, err := ParamsAs[CDBParams](MethodCDB, CDBParams{Coeff: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Coeff)

	zero, err := ParamsAs[PairwiseParams](MethodPairwise, nil)
	require.NoError(t, err)
	assert.Equal(t, PairwiseParams{}, zero)

	_, err = ParamsAs[CDBParams](MethodCDB, IMNPParams{})
	assert.ErrorIs(t, err, stegerr.ErrInvalidParams)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" CDB ")
	require.NoError(t, err)
	assert.Equal(t, MethodCDB, m)

	_, err = ParseMethod("dct")
	assert.ErrorIs(t, err, stegerr.ErrUnknownMethod)
}

func TestEnvelope_KeepsVariant(t *testing.T) {
	cases := []Params{
		BitPlaneParams{Plane: 3, ByteLength: 9},
		PairwiseParams{},
		CDBParams{Coeff: 0.9, Range: 3, Seed: 0xAAAA, BitCount: 40},
		IMNPParams{MessageLength: 12},
		HomoglyphParams{Seed: 123, ByteLength: 2},
	}

	for _, p := range cases {
		t.Run(string(p.Method()), func(t *testing.T) {
			env, err := Wrap(p)
			require.NoError(t, err)

			data, err := yaml.Marshal(env)
			require.NoError(t, err)

			var decoded Envelope
			require.NoError(t, yaml.Unmarshal(data, &decoded))
			got, err := decoded.Unwrap()
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestEnvelope_Errors(t *testing.T) {
	_, err := Envelope{Method: "dct"}.Unwrap()
	assert.ErrorIs(t, err, stegerr.ErrUnknownMethod)

	_, err = Envelope{Method: MethodCDB}.Unwrap()
	assert.ErrorIs(t, err, stegerr.ErrInvalidParams)

	_, err = Wrap(nil)
	assert.ErrorIs(t, err, stegerr.ErrInvalidParams)
}

func TestSaveLoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stego.params.yaml")
	want := CDBParams{Coeff: 0.25, Range: 2, Seed: -7, BitCount: 16}

	require.NoError(t, SaveParams(path, want))
	got, err := LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
