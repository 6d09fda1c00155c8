// Package secrets resolves secret references written in configuration.
//
// A value of the form "env:NAME" is read from the environment, "ssm:/path"
// from AWS Systems Manager Parameter Store with decryption. Anything else is
// returned unchanged.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

const (
	prefixEnv = "env:"
	prefixSSM = "ssm:"
)

// ssmAPI is the subset of *ssm.Client used by Resolver.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver turns references into secret values. The zero value resolves env
// references only.
type Resolver struct {
	ssm    ssmAPI
	lookup func(string) (string, bool)
}

// New returns a Resolver backed by api. api may be nil, in which case ssm
// references fail.
func New(api ssmAPI) *Resolver {
	return &Resolver{ssm: api}
}

// NewAWS loads the default AWS configuration (optionally pinned to region)
// and returns a Resolver using its SSM client.
func NewAWS(ctx context.Context, region string) (*Resolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}
	return New(ssm.NewFromConfig(cfg)), nil
}

// IsReference reports whether v would be resolved rather than used verbatim.
func IsReference(v string) bool {
	return strings.HasPrefix(v, prefixEnv) || strings.HasPrefix(v, prefixSSM)
}

// IsSSM reports whether v is a Parameter Store reference.
func IsSSM(v string) bool {
	return strings.HasPrefix(v, prefixSSM)
}

// Resolve returns the secret v refers to, or v itself when it is not a
// reference.
func (r *Resolver) Resolve(ctx context.Context, v string) (string, error) {
	switch {
	case strings.HasPrefix(v, prefixEnv):
		name := strings.TrimSpace(strings.TrimPrefix(v, prefixEnv))
		if name == "" {
			return "", errors.New("secrets: env reference without a variable name")
		}
		lookup := r.lookup
		if lookup == nil {
			lookup = os.LookupEnv
		}
		val, ok := lookup(name)
		if !ok {
			return "", fmt.Errorf("secrets: environment variable %s is not set", name)
		}
		return val, nil

	case strings.HasPrefix(v, prefixSSM):
		name := strings.TrimSpace(strings.TrimPrefix(v, prefixSSM))
		if name == "" {
			return "", errors.New("secrets: ssm reference without a parameter name")
		}
		if r.ssm == nil {
			return "", fmt.Errorf("secrets: ssm parameter %s: no ssm client configured", name)
		}
		out, err := r.ssm.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("secrets: get parameter %q: %w", name, err)
		}
		if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
			return "", fmt.Errorf("secrets: parameter %q has no value", name)
		}
		return *out.Parameter.Value, nil
	}
	return v, nil
}

// ResolveAll resolves every pointer in place and reports all failures at once.
func (r *Resolver) ResolveAll(ctx context.Context, fields ...*string) error {
	var errs []error
	for _, f := range fields {
		if f == nil || !IsReference(*f) {
			continue
		}
		v, err := r.Resolve(ctx, *f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f = v
	}
	return errors.Join(errs...)
}
