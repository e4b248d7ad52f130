package nuclide

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedRegistry(t *testing.T) {
	t.Parallel()

	reg, err := Load("")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, reg.Len(), 40, "embedded registry should carry chain members plus standalone sources")
	assert.Len(t, reg.Chains(), 3, "U-238, U-235 and Th-232 series")

	cs, ok := reg.Nuclide("cs137")
	require.True(t, ok)
	require.Len(t, cs.Lines, 1)
	assert.InDelta(t, 661.7, cs.Lines[0].EnergyKeV, 0.01)
	assert.True(t, cs.KnownHalfLife())

	u238, ok := reg.Chain("u238-series")
	require.True(t, ok)
	assert.Equal(t, ID("u238"), u238.Members[0].Nuclide)
	last, ok := reg.Nuclide(u238.Members[len(u238.Members)-1].Nuclide)
	require.True(t, ok)
	assert.True(t, last.Stable, "series must end in a stable nuclide")
}

func TestResolveByIDAndName(t *testing.T) {
	t.Parallel()

	reg, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		query  string
		wantID ID
	}{
		{"cs137", "cs137"},
		{"Cs-137", "cs137"},
		{"cs-137", "cs137"},
		{"BI214", "bi214"},
		{"Tl-208", "tl208"},
	}
	for _, tt := range tests {
		n, ok := reg.Resolve(tt.query)
		require.True(t, ok, "query %q", tt.query)
		assert.Equal(t, tt.wantID, n.ID, "query %q", tt.query)
	}

	_, ok := reg.Resolve("unobtainium")
	assert.False(t, ok)
}

func TestWeightForInheritsChainAbundance(t *testing.T) {
	t.Parallel()

	reg, err := Load("")
	require.NoError(t, err)

	u235, _ := reg.Nuclide("u235")
	th232, _ := reg.Nuclide("th232")
	bi214, _ := reg.Nuclide("bi214")
	cs137, _ := reg.Nuclide("cs137")

	assert.InDelta(t, 0.0072, reg.WeightFor(u235), 1e-9)
	assert.InDelta(t, 3.55, reg.WeightFor(th232), 1e-9)
	assert.InDelta(t, 1.0, reg.WeightFor(bi214), 1e-9, "U-238 series weight is the reference")
	assert.InDelta(t, 1.0, reg.WeightFor(cs137), 1e-9, "standalone default")
}

func TestChainTailAndBranching(t *testing.T) {
	t.Parallel()

	reg, err := Load("")
	require.NoError(t, err)

	tail := reg.ChainTail("ra226")
	require.NotEmpty(t, tail)
	assert.Equal(t, ID("ra226"), tail[0].ID)
	assert.Equal(t, ID("pb206"), tail[len(tail)-1].ID)
	assert.Len(t, tail, 10, "Ra-226 down to stable Pb-206")

	branching := reg.BranchingFor("ra226")
	require.Len(t, branching, len(tail))
	assert.Equal(t, 1.0, branching[0], "starting member always enters with full activity")

	// Tl-208 is fed by the 36% branch of Bi-212.
	tlBranching := reg.BranchingFor("bi212")
	require.Len(t, tlBranching, 3)
	assert.InDelta(t, 0.3594, tlBranching[1], 1e-9)

	assert.Nil(t, reg.ChainTail("cs137"), "standalone nuclides have no chain tail")
}

func TestScoreableMembers(t *testing.T) {
	t.Parallel()

	reg, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		chain ChainID
		want  int
	}{
		{"u238-series", 6},
		{"u235-series", 6},
		{"th232-series", 5},
	}
	for _, tt := range tests {
		c, ok := reg.Chain(tt.chain)
		require.True(t, ok)
		assert.Len(t, c.Scoreable(reg), tt.want, "chain %s", tt.chain)
	}
}

func TestLoadUserFileMerge(t *testing.T) {
	t.Parallel()

	userFile := filepath.Join(t.TempDir(), "custom.yaml")
	data := `nuclides:
  - id: mn54
    name: Mn-54
    half_life_seconds: 2.698e7
    lines:
      - energy_kev: 834.8
        intensity: 0.9998
  - id: cs137
    name: Cs-137
    half_life_seconds: 9.4925e8
    lines:
      - energy_kev: 661.7
        intensity: 0.9
`
	require.NoError(t, os.WriteFile(userFile, []byte(data), 0o644))

	reg, err := Load(userFile)
	require.NoError(t, err)

	mn, ok := reg.Nuclide("mn54")
	require.True(t, ok, "user nuclide should be added")
	assert.Equal(t, "Mn-54", mn.Name)

	cs, ok := reg.Nuclide("cs137")
	require.True(t, ok)
	assert.InDelta(t, 0.9, cs.Lines[0].Intensity, 1e-9, "user entry should override the embedded one")
}

func TestLoadUserFileRejectsChains(t *testing.T) {
	t.Parallel()

	userFile := filepath.Join(t.TempDir(), "chains.yaml")
	data := `chains:
  - id: custom-series
    name: Custom
    abundance_weight: 1.0
    members: []
`
	require.NoError(t, os.WriteFile(userFile, []byte(data), 0o644))

	_, err := Load(userFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chains")
}

func TestLoadMissingUserFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestBuildValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    registryFile
		wantMsg string
	}{
		{
			name: "duplicate nuclide id",
			file: registryFile{Nuclides: []*Nuclide{
				{ID: "x1", Name: "X-1", HalfLifeSeconds: 1},
				{ID: "x1", Name: "X-1", HalfLifeSeconds: 1},
			}},
			wantMsg: "duplicate nuclide",
		},
		{
			name: "intensity above one",
			file: registryFile{Nuclides: []*Nuclide{
				{ID: "x1", Name: "X-1", HalfLifeSeconds: 1, Lines: []Line{{EnergyKeV: 100, Intensity: 1.5}}},
			}},
			wantMsg: "intensity",
		},
		{
			name: "stable with half-life",
			file: registryFile{Nuclides: []*Nuclide{
				{ID: "x1", Name: "X-1", Stable: true, HalfLifeSeconds: 5},
			}},
			wantMsg: "stable",
		},
		{
			name: "chain member missing from registry",
			file: registryFile{
				Nuclides: []*Nuclide{{ID: "x1", Name: "X-1", Chain: "c1", HalfLifeSeconds: 1}},
				Chains: []*Chain{{ID: "c1", Name: "C", AbundanceWeight: 1, Members: []ChainMember{
					{Nuclide: "x1", BranchingFraction: 1},
					{Nuclide: "ghost", BranchingFraction: 1},
				}}},
			},
			wantMsg: "not in the registry",
		},
		{
			name: "chain ends unstable",
			file: registryFile{
				Nuclides: []*Nuclide{
					{ID: "x1", Name: "X-1", Chain: "c1", HalfLifeSeconds: 1},
					{ID: "x2", Name: "X-2", Chain: "c1", HalfLifeSeconds: 1},
				},
				Chains: []*Chain{{ID: "c1", Name: "C", AbundanceWeight: 1, Members: []ChainMember{
					{Nuclide: "x1", BranchingFraction: 1},
					{Nuclide: "x2", BranchingFraction: 1},
				}}},
			},
			wantMsg: "stable",
		},
		{
			name: "membership not mirrored",
			file: registryFile{
				Nuclides: []*Nuclide{
					{ID: "x1", Name: "X-1", Chain: "c1", HalfLifeSeconds: 1},
					{ID: "x2", Name: "X-2", Chain: "c1", Stable: true},
					{ID: "x3", Name: "X-3", Chain: "c1", HalfLifeSeconds: 1},
				},
				Chains: []*Chain{{ID: "c1", Name: "C", AbundanceWeight: 1, Members: []ChainMember{
					{Nuclide: "x1", BranchingFraction: 1},
					{Nuclide: "x2", BranchingFraction: 1},
				}}},
			},
			wantMsg: "not listed as a member",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.file.build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
