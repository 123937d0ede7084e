package metrics

import "github.com/kilianp07/buildopt/core/factory"

var recorderRegistry = factory.NewRegistry[Recorder]()

// RegisterRecorder adds a recorder factory identified by name.
func RegisterRecorder(name string, f factory.Factory[Recorder]) error {
	return recorderRegistry.Register(name, f)
}

// RecorderNames lists the registered recorder types.
func RecorderNames() []string { return recorderRegistry.Names() }

// NewRecorder creates a Recorder from the provided configuration. No
// configuration yields a NopRecorder and several yield a MultiRecorder.
func NewRecorder(cfg Config) (Recorder, error) {
	if len(cfg.Sinks) == 0 {
		return NopRecorder{}, nil
	}
	if len(cfg.Sinks) == 1 {
		return recorderRegistry.Create(cfg.Sinks[0])
	}
	recs := make([]Recorder, len(cfg.Sinks))
	for i, c := range cfg.Sinks {
		r, err := recorderRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		recs[i] = r
	}
	return NewMultiRecorder(recs...), nil
}
