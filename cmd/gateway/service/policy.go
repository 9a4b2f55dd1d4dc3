package service

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/clipstream/streamgate/cmd/gateway/models"
)

// UploadPolicy is an optional CEL gate evaluated after the built-in
// upload checks. An empty expression admits everything.
type UploadPolicy struct {
	program cel.Program
}

// NewUploadPolicy compiles the configured expression once at startup.
// The expression sees filename, ext and size and must yield a boolean.
func NewUploadPolicy(expr string) (*UploadPolicy, error) {
	if expr == "" {
		return &UploadPolicy{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("filename", cel.StringType),
		cel.Variable("ext", cel.StringType),
		cel.Variable("size", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create upload policy env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile upload policy: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build upload policy program: %w", err)
	}

	return &UploadPolicy{program: prg}, nil
}

// Admit evaluates the policy against one upload. A false result or a
// non-boolean expression rejects the upload.
func (p *UploadPolicy) Admit(filename, ext string, size int64) error {
	if p == nil || p.program == nil {
		return nil
	}

	out, _, err := p.program.Eval(map[string]interface{}{
		"filename": filename,
		"ext":      ext,
		"size":     size,
	})
	if err != nil {
		return models.WrapError(models.CodePolicyRejected, err, "upload policy evaluation failed")
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return models.NewError(models.CodePolicyRejected, "upload policy returned %T, want bool", out.Value())
	}
	if !allowed {
		return models.NewError(models.CodePolicyRejected, "upload rejected by policy")
	}

	return nil
}
