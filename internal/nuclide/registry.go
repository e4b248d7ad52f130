// registry.go: loading and validation of the nuclide registry.
package nuclide

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/logging"
)

//go:embed data/nuclides.yaml
var embeddedRegistry []byte

// registryFile mirrors the YAML layout of the registry data.
type registryFile struct {
	Nuclides []*Nuclide `yaml:"nuclides"`
	Chains   []*Chain   `yaml:"chains"`
}

// Registry holds all known nuclides and decay chains. It is immutable after
// Load returns and safe for unsynchronized concurrent reads.
type Registry struct {
	nuclides   map[ID]*Nuclide
	byName     map[string]*Nuclide
	chains     map[ChainID]*Chain
	order      []ID
	chainOrder []ChainID
}

// Load builds the registry from the embedded data, optionally merged with a
// user-supplied YAML file of additional nuclides.
func Load(userFile string) (*Registry, error) {
	logger := logging.ForService("nuclide")
	if logger == nil {
		logger = slog.Default()
	}

	file, err := parseRegistry(embeddedRegistry)
	if err != nil {
		return nil, errors.New(err).
			Component("nuclide").
			Category(errors.CategoryRegistryLoad).
			Context("source", "embedded").
			Build()
	}

	if userFile != "" {
		userData, err := os.ReadFile(userFile)
		if err != nil {
			return nil, errors.New(err).
				Component("nuclide").
				Category(errors.CategoryFileIO).
				Context("source", userFile).
				Build()
		}
		merged, err := parseRegistry(userData)
		if err != nil {
			return nil, errors.New(err).
				Component("nuclide").
				Category(errors.CategoryRegistryLoad).
				Context("source", userFile).
				Build()
		}
		if len(merged.Chains) > 0 {
			return nil, errors.Newf("user registry %s defines decay chains, only nuclide entries may be added", userFile).
				Category(errors.CategoryRegistryLoad).
				Build()
		}
		file.merge(merged, logger)
	}

	reg, err := file.build()
	if err != nil {
		return nil, errors.New(err).
			Component("nuclide").
			Category(errors.CategoryRegistryLoad).
			Build()
	}

	logger.Info("nuclide registry loaded",
		"nuclides", len(reg.order),
		"chains", len(reg.chainOrder),
		"user_file", userFile != "")
	return reg, nil
}

func parseRegistry(data []byte) (*registryFile, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing registry data: %w", err)
	}
	return &file, nil
}

// merge appends or replaces nuclides from a user registry file.
func (f *registryFile) merge(user *registryFile, logger *slog.Logger) {
	index := make(map[ID]int, len(f.Nuclides))
	for i, n := range f.Nuclides {
		index[n.ID] = i
	}
	for _, n := range user.Nuclides {
		if i, ok := index[n.ID]; ok {
			logger.Info("user registry overrides nuclide", "id", n.ID)
			f.Nuclides[i] = n
			continue
		}
		logger.Info("user registry adds nuclide", "id", n.ID)
		f.Nuclides = append(f.Nuclides, n)
	}
}

// build validates the raw file and assembles the lookup maps.
func (f *registryFile) build() (*Registry, error) {
	reg := &Registry{
		nuclides: make(map[ID]*Nuclide, len(f.Nuclides)),
		byName:   make(map[string]*Nuclide, len(f.Nuclides)),
		chains:   make(map[ChainID]*Chain, len(f.Chains)),
	}

	for _, n := range f.Nuclides {
		if err := validateNuclide(n); err != nil {
			return nil, err
		}
		if _, dup := reg.nuclides[n.ID]; dup {
			return nil, fmt.Errorf("duplicate nuclide id %q", n.ID)
		}
		if n.Weight == 0 {
			n.Weight = 1
		}
		reg.nuclides[n.ID] = n
		reg.byName[strings.ToLower(n.Name)] = n
		reg.order = append(reg.order, n.ID)
	}

	for _, c := range f.Chains {
		if err := validateChain(c, reg.nuclides); err != nil {
			return nil, err
		}
		if _, dup := reg.chains[c.ID]; dup {
			return nil, fmt.Errorf("duplicate chain id %q", c.ID)
		}
		reg.chains[c.ID] = c
		reg.chainOrder = append(reg.chainOrder, c.ID)
	}

	// Chain references must resolve both ways: a nuclide claiming membership
	// has to appear in that chain's member list.
	for _, n := range reg.nuclides {
		if n.Chain == "" {
			continue
		}
		chain, ok := reg.chains[n.Chain]
		if !ok {
			return nil, fmt.Errorf("nuclide %q references unknown chain %q", n.ID, n.Chain)
		}
		if !chainContains(chain, n.ID) {
			return nil, fmt.Errorf("nuclide %q claims membership of chain %q but is not listed as a member", n.ID, n.Chain)
		}
	}

	return reg, nil
}

func validateNuclide(n *Nuclide) error {
	if n.ID == "" {
		return fmt.Errorf("nuclide with empty id (name %q)", n.Name)
	}
	if n.Name == "" {
		return fmt.Errorf("nuclide %q has no name", n.ID)
	}
	if n.Stable && n.HalfLifeSeconds != 0 {
		return fmt.Errorf("nuclide %q is marked stable but has a half-life", n.ID)
	}
	if n.HalfLifeSeconds < 0 {
		return fmt.Errorf("nuclide %q has negative half-life", n.ID)
	}
	if n.Weight < 0 {
		return fmt.Errorf("nuclide %q has negative abundance weight", n.ID)
	}
	seen := make(map[float64]bool, len(n.Lines))
	for _, line := range n.Lines {
		if line.EnergyKeV <= 0 {
			return fmt.Errorf("nuclide %q has line with non-positive energy %g", n.ID, line.EnergyKeV)
		}
		if line.Intensity <= 0 || line.Intensity > 1 {
			return fmt.Errorf("nuclide %q line %g keV has intensity %g outside (0, 1]", n.ID, line.EnergyKeV, line.Intensity)
		}
		if seen[line.EnergyKeV] {
			return fmt.Errorf("nuclide %q has duplicate line at %g keV", n.ID, line.EnergyKeV)
		}
		seen[line.EnergyKeV] = true
	}
	return nil
}

func validateChain(c *Chain, nuclides map[ID]*Nuclide) error {
	if c.ID == "" {
		return fmt.Errorf("chain with empty id (name %q)", c.Name)
	}
	if c.Name == "" {
		return fmt.Errorf("chain %q has no name", c.ID)
	}
	if c.AbundanceWeight <= 0 {
		return fmt.Errorf("chain %q has non-positive abundance weight", c.ID)
	}
	if len(c.Members) < 2 {
		return fmt.Errorf("chain %q needs at least a parent and an end member", c.ID)
	}
	for i, m := range c.Members {
		n, ok := nuclides[m.Nuclide]
		if !ok {
			return fmt.Errorf("chain %q member %q is not in the registry", c.ID, m.Nuclide)
		}
		if n.Chain != c.ID {
			return fmt.Errorf("chain %q lists %q which belongs to chain %q", c.ID, m.Nuclide, n.Chain)
		}
		if m.BranchingFraction <= 0 || m.BranchingFraction > 1 {
			return fmt.Errorf("chain %q member %q has branching fraction %g outside (0, 1]", c.ID, m.Nuclide, m.BranchingFraction)
		}
		// Only the end member must be stable. Interior members may lack a
		// half-life; decay prediction truncates at the gap.
		if i == len(c.Members)-1 && !n.Stable {
			return fmt.Errorf("chain %q must end in a stable nuclide, got %q", c.ID, m.Nuclide)
		}
	}
	return nil
}

func chainContains(c *Chain, id ID) bool {
	for _, m := range c.Members {
		if m.Nuclide == id {
			return true
		}
	}
	return false
}

// Nuclide looks up a nuclide by id.
func (r *Registry) Nuclide(id ID) (*Nuclide, bool) {
	n, ok := r.nuclides[id]
	return n, ok
}

// Resolve looks up a nuclide by id or by display name, case-insensitively.
// API handlers and the CLI accept either form.
func (r *Registry) Resolve(s string) (*Nuclide, bool) {
	if n, ok := r.nuclides[ID(strings.ToLower(s))]; ok {
		return n, true
	}
	n, ok := r.byName[strings.ToLower(s)]
	return n, ok
}

// Chain looks up a decay chain by id.
func (r *Registry) Chain(id ChainID) (*Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// Nuclides returns all nuclides in registry order.
func (r *Registry) Nuclides() []*Nuclide {
	out := make([]*Nuclide, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nuclides[id])
	}
	return out
}

// Chains returns all decay chains in registry order.
func (r *Registry) Chains() []*Chain {
	out := make([]*Chain, 0, len(r.chainOrder))
	for _, id := range r.chainOrder {
		out = append(out, r.chains[id])
	}
	return out
}

// Len returns the number of nuclides.
func (r *Registry) Len() int {
	return len(r.order)
}

// WeightFor returns the abundance weight used in confidence scoring. Chain
// members inherit the chain's weight, standalone nuclides use their own.
func (r *Registry) WeightFor(n *Nuclide) float64 {
	if n.Chain != "" {
		if c, ok := r.chains[n.Chain]; ok {
			return c.AbundanceWeight
		}
	}
	if n.Weight > 0 {
		return n.Weight
	}
	return 1
}

// ChainTail returns the remainder of a nuclide's decay chain starting at the
// nuclide itself, or nil when the nuclide is not a chain member. Used by the
// decay predictor to evolve activity from an arbitrary starting member.
func (r *Registry) ChainTail(id ID) []*Nuclide {
	n, ok := r.nuclides[id]
	if !ok || n.Chain == "" {
		return nil
	}
	chain, ok := r.chains[n.Chain]
	if !ok {
		return nil
	}
	start := -1
	for i, m := range chain.Members {
		if m.Nuclide == id {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	out := make([]*Nuclide, 0, len(chain.Members)-start)
	for _, m := range chain.Members[start:] {
		out = append(out, r.nuclides[m.Nuclide])
	}
	return out
}

// BranchingFor returns the branching fraction into each member of the chain
// tail returned by ChainTail, aligned by index. The first element is 1.
func (r *Registry) BranchingFor(id ID) []float64 {
	n, ok := r.nuclides[id]
	if !ok || n.Chain == "" {
		return nil
	}
	chain, ok := r.chains[n.Chain]
	if !ok {
		return nil
	}
	start := -1
	for i, m := range chain.Members {
		if m.Nuclide == id {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	out := make([]float64, 0, len(chain.Members)-start)
	out = append(out, 1)
	for _, m := range chain.Members[start+1:] {
		out = append(out, m.BranchingFraction)
	}
	return out
}
