package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/nuclide"
)

// NuclideSummary is the list form returned by /nuclides.
type NuclideSummary struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	HalfLifeSeconds float64 `json:"half_life_seconds,omitempty"`
	Stable          bool    `json:"stable,omitempty"`
	Chain           string  `json:"chain,omitempty"`
	Lines           int     `json:"lines"`
}

// NuclideDetail adds the emission lines and scoring weight.
type NuclideDetail struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	HalfLifeSeconds float64        `json:"half_life_seconds,omitempty"`
	Stable          bool           `json:"stable,omitempty"`
	Weight          float64        `json:"weight"`
	Chain           string         `json:"chain,omitempty"`
	Lines           []EmissionLine `json:"lines"`
}

// EmissionLine is a single gamma line.
type EmissionLine struct {
	EnergyKeV float64 `json:"energy_kev"`
	Intensity float64 `json:"intensity"`
}

// ChainInfo describes a decay series and its members.
type ChainInfo struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	AbundanceWeight float64       `json:"abundance_weight"`
	Suppresses      bool          `json:"suppresses,omitempty"`
	Members         []ChainMember `json:"members"`
}

// ChainMember is one step of a decay series.
type ChainMember struct {
	Nuclide           string    `json:"nuclide"`
	BranchingFraction float64   `json:"branching_fraction"`
	KeyEnergiesKeV    []float64 `json:"key_energies_kev,omitempty"`
}

func (c *Controller) initRegistryRoutes() {
	c.Group.GET("/nuclides", c.ListNuclides)
	c.Group.GET("/nuclides/:id", c.GetNuclide)
	c.Group.GET("/chains", c.ListChains)
}

// ListNuclides returns every nuclide in the registry, in registry order.
func (c *Controller) ListNuclides(ctx echo.Context) error {
	all := c.Registry.Nuclides()
	summaries := make([]NuclideSummary, 0, len(all))
	for _, n := range all {
		summaries = append(summaries, NuclideSummary{
			ID:              string(n.ID),
			Name:            n.Name,
			HalfLifeSeconds: n.HalfLifeSeconds,
			Stable:          n.Stable,
			Chain:           string(n.Chain),
			Lines:           len(n.Lines),
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"nuclides": summaries,
		"total":    len(summaries),
	})
}

// GetNuclide returns one nuclide with its emission lines. The id segment
// accepts the same forms as Resolve, so /nuclides/Cs-137 works.
func (c *Controller) GetNuclide(ctx echo.Context) error {
	id := ctx.Param("id")
	n, ok := c.Registry.Resolve(id)
	if !ok {
		err := errors.Newf("unknown nuclide %q", id).
			Component("api").
			Category(errors.CategoryNotFound).
			Build()
		return c.HandleError(ctx, err, "unknown nuclide", http.StatusNotFound)
	}

	lines := make([]EmissionLine, 0, len(n.Lines))
	for _, l := range n.Lines {
		lines = append(lines, EmissionLine{EnergyKeV: l.EnergyKeV, Intensity: l.Intensity})
	}
	return ctx.JSON(http.StatusOK, NuclideDetail{
		ID:              string(n.ID),
		Name:            n.Name,
		HalfLifeSeconds: n.HalfLifeSeconds,
		Stable:          n.Stable,
		Weight:          c.Registry.WeightFor(n),
		Chain:           string(n.Chain),
		Lines:           lines,
	})
}

// ListChains returns every decay series in the registry.
func (c *Controller) ListChains(ctx echo.Context) error {
	all := c.Registry.Chains()
	infos := make([]ChainInfo, 0, len(all))
	for _, ch := range all {
		infos = append(infos, chainInfo(ch))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"chains": infos,
		"total":  len(infos),
	})
}

func chainInfo(ch *nuclide.Chain) ChainInfo {
	members := make([]ChainMember, 0, len(ch.Members))
	for _, m := range ch.Members {
		members = append(members, ChainMember{
			Nuclide:           string(m.Nuclide),
			BranchingFraction: m.BranchingFraction,
			KeyEnergiesKeV:    m.KeyEnergiesKeV,
		})
	}
	return ChainInfo{
		ID:              string(ch.ID),
		Name:            ch.Name,
		AbundanceWeight: ch.AbundanceWeight,
		Suppresses:      ch.Suppresses,
		Members:         members,
	}
}
