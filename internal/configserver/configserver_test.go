package configserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/internal/configserver"
	"github.com/angeloszaimis/reservations/pkg/logger"
)

var _ = Describe("Config server", func() {
	var (
		dir  string
		repo *configserver.Repository
		mux  *http.ServeMux
	)

	write := func(name, content string) {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)).To(Succeed())
	}

	serve := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		write("reservation-service.yaml", "message: Hello from the repo\nserver:\n  address: \":8000\"\n")
		write("reservation-service-dev.yaml", "message: Hello from dev\n")

		repo = configserver.NewRepository(dir)
		mux = configserver.NewHandler(repo, logger.Discard()).Routes()
	})

	Describe("Repository.Find", func() {
		It("should put the profile source before the base source", func() {
			env, err := repo.Find("reservation-service", "dev")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Name).To(Equal("reservation-service"))
			Expect(env.Profiles).To(Equal([]string{"dev"}))
			Expect(env.PropertySources).To(HaveLen(2))
			Expect(env.PropertySources[0].Source).To(HaveKeyWithValue("message", "Hello from dev"))
			Expect(env.PropertySources[1].Source).To(HaveKeyWithValue("message", "Hello from the repo"))
		})

		It("should flatten nested keys", func() {
			env, err := repo.Find("reservation-service", "default")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.PropertySources).To(HaveLen(1))
			Expect(env.PropertySources[0].Source).To(HaveKeyWithValue("server.address", ":8000"))
		})

		It("should return ErrNotFound when neither file exists", func() {
			_, err := repo.Find("gateway", "dev")
			Expect(err).To(MatchError(configserver.ErrNotFound))
		})

		It("should reject names that escape the directory", func() {
			_, err := repo.Find("..", "dev")
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(configserver.ErrNotFound))
		})
	})

	Describe("Handler", func() {
		It("should greet on /", func() {
			rec := serve("/")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("Hello World"))
		})

		It("should serve the environment as JSON", func() {
			rec := serve("/reservation-service/dev")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("name", "reservation-service"))
			Expect(body).To(HaveKeyWithValue("profiles", ConsistOf("dev")))
			Expect(body).To(HaveKeyWithValue("propertySources", HaveLen(2)))
		})

		It("should answer 404 for an unknown application", func() {
			rec := serve("/gateway/dev")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})
