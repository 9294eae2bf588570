package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NotFound("product", "p1"), http.StatusNotFound},
		{fmt.Errorf("product milk: %w", ErrInsufficientStock), http.StatusConflict},
		{ErrInvalidState, http.StatusConflict},
		{ErrInsufficientPayment, http.StatusPaymentRequired},
		{ErrEmptyCart, http.StatusBadRequest},
		{Validation("quantity must be > 0"), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), "%v", c.err)
	}
}

func TestEmptyCartIsValidation(t *testing.T) {
	assert.ErrorIs(t, ErrEmptyCart, ErrValidation)
	assert.ErrorIs(t, NotFound("order", 7), ErrNotFound)
}
