package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(ctx context.Context) (Record, error) {
	args := m.Called(ctx)
	return args.Get(0).(Record), args.Error(1)
}

type mockMailboxes struct{ mock.Mock }

func (m *mockMailboxes) CreateMailbox(ctx context.Context) (Mailbox, error) {
	args := m.Called(ctx)
	return args.Get(0).(Mailbox), args.Error(1)
}

type mockPasswords struct{ mock.Mock }

func (m *mockPasswords) Generate(ctx context.Context, opts PasswordOptions) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

var bundleRecord = Record{Username: "jd", Name: "Jane Doe", Email: "jane@example.com"}

func TestBundler_UsesMailbox(t *testing.T) {
	gen, mb, pw := new(mockGenerator), new(mockMailboxes), new(mockPasswords)
	gen.On("Generate", mock.Anything).Return(bundleRecord, nil)
	mb.On("CreateMailbox", mock.Anything).Return(Mailbox{ID: "m1", Address: "x7@mail.test", Password: "Mailbox#Pass1"}, nil)
	pw.On("Generate", mock.Anything, DefaultPasswordOptions()).Return("Generated#Pass2", nil)

	b, err := NewBundler(gen, mb, pw, DefaultPasswordOptions(), nil).Bundle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "x7@mail.test", b.Record.Email)
	assert.Equal(t, "Mailbox#Pass1", b.Record.Password)
	assert.Equal(t, "jd", b.Record.Username)
	require.NotNil(t, b.Mailbox)
	assert.Equal(t, "m1", b.Mailbox.ID)
	assert.Equal(t, StrengthStrong, b.Strength)
	gen.AssertExpectations(t)
	mb.AssertExpectations(t)
	pw.AssertExpectations(t)
}

func TestBundler_MailboxFailureKeepsIdentityEmail(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gen, mb, pw := new(mockGenerator), new(mockMailboxes), new(mockPasswords)
	gen.On("Generate", mock.Anything).Return(bundleRecord, nil)
	mb.On("CreateMailbox", mock.Anything).Return(Mailbox{}, errors.New("mail.tm down"))
	pw.On("Generate", mock.Anything, mock.Anything).Return("Generated#Pass2", nil)

	b, err := NewBundler(gen, mb, pw, DefaultPasswordOptions(), zap.New(core)).Bundle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", b.Record.Email)
	assert.Equal(t, "Generated#Pass2", b.Record.Password)
	assert.Nil(t, b.Mailbox)
	assert.Equal(t, 1, logs.FilterMessageSnippet("mailbox unavailable").Len())
}

func TestBundler_WithoutMailboxProvider(t *testing.T) {
	gen, pw := new(mockGenerator), new(mockPasswords)
	gen.On("Generate", mock.Anything).Return(bundleRecord, nil)
	pw.On("Generate", mock.Anything, mock.Anything).Return("abc", nil)

	b, err := NewBundler(gen, nil, pw, DefaultPasswordOptions(), nil).Bundle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", b.Record.Password)
	assert.Equal(t, StrengthWeak, b.Strength)
}

func TestBundler_IdentityFailure(t *testing.T) {
	gen, pw := new(mockGenerator), new(mockPasswords)
	gen.On("Generate", mock.Anything).Return(Record{}, ErrNoResults)
	pw.On("Generate", mock.Anything, mock.Anything).Return("abc", nil).Maybe()

	_, err := NewBundler(gen, nil, pw, DefaultPasswordOptions(), nil).Bundle(context.Background())
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestBundler_PasswordFailure(t *testing.T) {
	gen, pw := new(mockGenerator), new(mockPasswords)
	gen.On("Generate", mock.Anything).Return(bundleRecord, nil).Maybe()
	pw.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("entropy exhausted"))

	_, err := NewBundler(gen, nil, pw, DefaultPasswordOptions(), nil).Bundle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate password")
}
