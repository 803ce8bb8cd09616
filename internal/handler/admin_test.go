package handler_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/internal/handler"
	"github.com/angeloszaimis/reservations/pkg/logger"
)

type countingResetter struct {
	resets int
}

func (c *countingResetter) Reset() {
	c.resets++
}

var _ = Describe("ResetBreakers", func() {
	It("should reset the breakers and answer 204", func() {
		resetter := &countingResetter{}
		rec := httptest.NewRecorder()

		handler.ResetBreakers(resetter, logger.Discard()).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/breakers/reset", nil))

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(resetter.resets).To(Equal(1))
	})
})
