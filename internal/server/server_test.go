package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type closer struct {
	closed *bool
}

func (c closer) Close() error {
	*c.closed = true
	return nil
}

func TestHooks_RunInRegistrationOrder(t *testing.T) {
	var order []string

	h := &Hooks{}
	h.Add("first", func() error {
		order = append(order, "first")
		return nil
	})
	h.Add("second", func() error {
		order = append(order, "second")
		return nil
	})

	h.run()

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestHooks_FailureDoesNotStopExecution(t *testing.T) {
	var ran bool

	h := &Hooks{}
	h.Add("failing", func() error { return errors.New("teardown failed") })
	h.Add("after", func() error {
		ran = true
		return nil
	})

	h.run()

	assert.True(t, ran)
}

func TestHooks_NilHookIgnored(t *testing.T) {
	h := &Hooks{}
	h.Add("nil", nil)

	h.run()

	assert.Empty(t, h.hooks)
}

func TestHooks_AddCloser(t *testing.T) {
	closed := false

	h := &Hooks{}
	h.AddCloser("resource", closer{closed: &closed})

	h.run()

	assert.True(t, closed)
}
