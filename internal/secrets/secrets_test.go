package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	values  map[string]string
	err     error
	names   []string
	decrypt []bool
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.names = append(f.names, *in.Name)
	f.decrypt = append(f.decrypt, in.WithDecryption != nil && *in.WithDecryption)
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[*in.Name]
	if !ok {
		return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name}}, nil
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name, Value: &v}}, nil
}

func envLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestResolve_Literal(t *testing.T) {
	r := New(nil)
	v, err := r.Resolve(context.Background(), "sk-plain")
	require.NoError(t, err)
	require.Equal(t, "sk-plain", v)
}

func TestResolve_Env(t *testing.T) {
	r := &Resolver{lookup: envLookup(map[string]string{"TWILIO_TOKEN": "abc", "EMPTY": ""})}

	v, err := r.Resolve(context.Background(), "env:TWILIO_TOKEN")
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	v, err = r.Resolve(context.Background(), "env:EMPTY")
	require.NoError(t, err)
	require.Equal(t, "", v)

	_, err = r.Resolve(context.Background(), "env:MISSING")
	require.ErrorContains(t, err, "MISSING")

	_, err = r.Resolve(context.Background(), "env:")
	require.Error(t, err)
}

func TestResolve_SSM(t *testing.T) {
	api := &fakeSSM{values: map[string]string{"/voxbridge/openai": "sk-123"}}
	r := New(api)

	v, err := r.Resolve(context.Background(), "ssm:/voxbridge/openai")
	require.NoError(t, err)
	require.Equal(t, "sk-123", v)
	require.Equal(t, []bool{true}, api.decrypt)

	_, err = r.Resolve(context.Background(), "ssm:/voxbridge/missing")
	require.ErrorContains(t, err, "no value")
}

func TestResolve_SSMErrors(t *testing.T) {
	_, err := New(nil).Resolve(context.Background(), "ssm:/x")
	require.ErrorContains(t, err, "no ssm client")

	_, err = New(&fakeSSM{err: errors.New("AccessDenied")}).Resolve(context.Background(), "ssm:/x")
	require.ErrorContains(t, err, "AccessDenied")
}

func TestResolveAll(t *testing.T) {
	api := &fakeSSM{values: map[string]string{"/db": "postgres://u:p@db/vox"}}
	r := &Resolver{ssm: api, lookup: envLookup(map[string]string{"KEY": "k"})}

	key, dsn, plain, bad := "env:KEY", "ssm:/db", "literal", "env:NOPE"
	err := r.ResolveAll(context.Background(), &key, &dsn, &plain, nil, &bad)
	require.ErrorContains(t, err, "NOPE")
	require.Equal(t, "k", key)
	require.Equal(t, "postgres://u:p@db/vox", dsn)
	require.Equal(t, "literal", plain)
	require.Equal(t, "env:NOPE", bad)
	require.Equal(t, []string{"/db"}, api.names)
}

func TestIsReference(t *testing.T) {
	require.True(t, IsReference("env:X"))
	require.True(t, IsReference("ssm:/a/b"))
	require.False(t, IsReference("sk-env:x"))
	require.False(t, IsReference(""))
}

func TestIsSSM(t *testing.T) {
	require.True(t, IsSSM("ssm:/a/b"))
	require.False(t, IsSSM("env:X"))
	require.False(t, IsSSM("plain"))
}
