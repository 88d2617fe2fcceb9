package compose

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"

	"github.com/stackfleet/composer/pkg/engine"
)

// LoadProject parses the stack's compose definition.
func LoadProject(ctx context.Context, stack *engine.Stack) (*composetypes.Project, error) {
	if !stack.HasCompose {
		return nil, fmt.Errorf("stack %s has no compose file", stack.Name)
	}

	data, err := os.ReadFile(stack.ComposeFile)
	if err != nil {
		return nil, fmt.Errorf("read compose file %s: %w", stack.ComposeFile, err)
	}

	env := make(composetypes.Mapping)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}

	details := composetypes.ConfigDetails{
		WorkingDir:  stack.Path,
		ConfigFiles: []composetypes.ConfigFile{{Filename: stack.ComposeFile, Content: data}},
		Environment: env,
	}

	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(ProjectName(stack), true)
	})
	if err != nil {
		return nil, fmt.Errorf("load compose project %s: %w", stack.Name, err)
	}
	return project, nil
}

// Services returns the service names declared by the stack, sorted.
func Services(ctx context.Context, stack *engine.Stack) ([]string, error) {
	project, err := LoadProject(ctx, stack)
	if err != nil {
		return nil, err
	}
	return project.ServiceNames(), nil
}
