package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// configSchema constrains CUE configuration files before they are decoded.
const configSchema = `
#Config: {
	max_parallelism?: int & <=4096
	stop_timeout?:    =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

	logging?: {
		level?:  "trace" | "debug" | "info" | "warn" | "error"
		format?: "console" | "json"
		output?: string
	}

	tracing?: {
		enabled?:       bool
		exporter?:      "otlp" | "stdout" | "none"
		endpoint?:      string
		sampling_rate?: number & >=0 & <=1
		insecure?:      bool
	}

	metrics?: {
		enabled?:        bool
		listen_address?: string
		path?:           =~"^/"
		namespace?:      =~"^[a-zA-Z0-9]+$"
	}

	events?: {
		enabled?:     bool
		async?:       bool
		buffer_size?: int & >=0
	}
}
`

// schema holds the compiled #Config definition. A cue.Context is not safe
// for concurrent use, so every use goes through mu.
type schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

var (
	schemaOnce sync.Once
	compiled   *schema
	schemaErr  error
)

func loadSchema() (*schema, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		root := ctx.CompileString(configSchema, cue.Filename("config.schema.cue"))
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile config schema: %w", err)
			return
		}
		compiled = &schema{ctx: ctx, def: root.LookupPath(cue.ParsePath("#Config"))}
	})
	return compiled, schemaErr
}

// evaluate compiles a CUE source, checks it against #Config and exports it as JSON.
func (s *schema) evaluate(filename string, src []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val := s.ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", filename, err)
	}

	unified := s.def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s does not match the config schema: %w", filename, err)
	}

	data, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", filename, err)
	}
	return data, nil
}
