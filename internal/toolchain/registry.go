package toolchain

import (
	"fmt"

	"github.com/google/shlex"
	"github.com/pkg/errors"
)

var ErrUnsupportedLanguage = errors.New("language not supported")

type Toolchain struct {
	Language string
	Compiler string
	// fixed flag string, split with shell quoting rules
	Flags string
}

// Args builds the compiler argument list: source, flags, then the output path.
func (t Toolchain) Args(sourcePath, outputPath string) ([]string, error) {
	flags, err := shlex.Split(t.Flags)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse flags of %s", t.Language)
	}
	args := make([]string, 0, len(flags)+3)
	args = append(args, sourcePath)
	args = append(args, flags...)
	args = append(args, "-o", outputPath)
	return args, nil
}

// Registry is a static language tag -> toolchain table. It is not modified
// after construction.
type Registry struct {
	toolchains map[string]Toolchain
}

func DefaultToolchains() []Toolchain {
	return []Toolchain{
		{Language: "c", Compiler: "gcc", Flags: "-std=c11 -O2 -Wall -lm -DONLINE_JUDGE"},
		{Language: "c++", Compiler: "g++", Flags: "-std=c++14 -O2 -Wall -lm -DONLINE_JUDGE"},
		{Language: "c++17", Compiler: "g++", Flags: "-std=c++17 -O2 -Wall -lm -DONLINE_JUDGE"},
	}
}

// NewRegistry builds a registry. Later entries override earlier ones with
// the same language tag.
func NewRegistry(toolchains ...Toolchain) *Registry {
	r := &Registry{toolchains: make(map[string]Toolchain, len(toolchains))}
	for _, t := range toolchains {
		r.toolchains[t.Language] = t
	}
	return r
}

func NewDefaultRegistry() *Registry {
	return NewRegistry(DefaultToolchains()...)
}

func (r *Registry) Lookup(language string) (Toolchain, error) {
	t, ok := r.toolchains[language]
	if !ok {
		return Toolchain{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return t, nil
}
