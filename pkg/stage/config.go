package stage

import "slices"

// Configuration records which variant runs at a stage position and with
// which args. It is replaced wholesale on every reconfiguration.
type Configuration struct {
	Stage    string
	Position int
	Variant  string
	Args     []any

	transform Transform
}

// Summary is the public view of a Configuration.
type Summary struct {
	Stage   string
	Variant string
	Args    []any
}

func (c *Configuration) summary() *Summary {
	return &Summary{Stage: c.Stage, Variant: c.Variant, Args: slices.Clone(c.Args)}
}

// configStore holds one optional Configuration per stage position.
type configStore struct {
	pipeline *Pipeline
	configs  []*Configuration
}

func newConfigStore(p *Pipeline) configStore {
	return configStore{pipeline: p, configs: make([]*Configuration, p.Len())}
}

// At returns the configuration of a position. Fixed stages get theirs
// synthesized from the default transform on first access.
func (s *configStore) At(position int) (*Configuration, bool) {
	if cfg := s.configs[position]; cfg != nil {
		return cfg, true
	}
	def := s.pipeline.stages[position]
	if def.Configurable {
		return nil, false
	}
	cfg := &Configuration{
		Stage:     def.Name,
		Position:  position,
		Variant:   DefaultVariant,
		Args:      []any{},
		transform: def.defaultTransform,
	}
	s.configs[position] = cfg
	return cfg, true
}

func (s *configStore) Set(cfg *Configuration) {
	s.configs[cfg.Position] = cfg
}

func (s *configStore) Summaries() []*Summary {
	out := make([]*Summary, len(s.configs))
	for i := range s.configs {
		if cfg, ok := s.At(i); ok {
			out[i] = cfg.summary()
		}
	}
	return out
}
