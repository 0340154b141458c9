package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/aedificium/mapper/internal/attempt"
	"github.com/aedificium/mapper/internal/judge/local"
	"github.com/aedificium/mapper/internal/judge/remote"
	"github.com/aedificium/mapper/internal/solver"
	"github.com/aedificium/mapper/pkg/aedificium"
	"github.com/aedificium/mapper/pkg/aedificium/gate"
)

func Logf(f string, v ...interface{}) {
	if !strings.HasSuffix(f, "\n") {
		f += "\n"
	}
	fmt.Fprintf(GinkgoWriter, f, v...)
}

// judgeServer serves the contest API on top of local simulators. Every
// select draws a new map, alternating between contest labels and random
// labels.
type judgeServer struct {
	mu       sync.Mutex
	rng      *rand.Rand
	sim      *local.Simulator
	selects  int
	verdicts []bool
}

func (s *judgeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	enc := json.NewEncoder(w)
	switch r.URL.Path {
	case "/select":
		var name string
		_ = json.Unmarshal(body["problemName"], &name)
		rooms, ok := remote.ProblemSizes[name]
		if !ok {
			http.Error(w, "unknown problem", http.StatusBadRequest)
			return
		}
		draw := local.RandomGraph
		if s.selects%2 == 1 {
			draw = local.RandomFreeGraph
		}
		s.sim, _ = local.NewSimulator(draw(rooms, s.rng))
		s.selects++
		_ = enc.Encode(map[string]string{"problemName": name})
	case "/explore":
		var plans []string
		_ = json.Unmarshal(body["plans"], &plans)
		results, err := s.sim.Explore(r.Context(), plans)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = enc.Encode(map[string]interface{}{"results": results, "queryCount": s.sim.QueryCount()})
	case "/guess":
		var guess aedificium.Guess
		_ = json.Unmarshal(body["map"], &guess)
		correct, _ := s.sim.Guess(r.Context(), guess)
		s.verdicts = append(s.verdicts, correct)
		_ = enc.Encode(map[string]bool{"correct": correct})
	default:
		http.NotFound(w, r)
	}
}

var _ = Describe("Mapping through the contest API", func() {
	When("the judge hosts small problems", func() {
		var (
			server *judgeServer
			ts     *httptest.Server
			ctx    context.Context
			cancel context.CancelFunc
			log    *logrus.Logger
		)
		BeforeEach(func() {
			ctx, cancel = context.WithTimeout(context.Background(), 5*time.Minute)

			By("starting a judge backed by local simulators")
			server = &judgeServer{rng: rand.New(rand.NewSource(GinkgoRandomSeed()))}
			ts = httptest.NewServer(server)

			log = logrus.New()
			log.SetOutput(GinkgoWriter)
		})
		AfterEach(func() {
			By("stopping the judge")
			ts.Close()
			cancel()
		})

		DescribeTable("should map the building with one exploration per attempt",
			func(problem string) {
				cfg := remote.DefaultConfig()
				cfg.ID = "e2e"
				cfg.BaseURL = ts.URL
				cfg.Delay = time.Millisecond

				portfolio, err := solver.NewPortfolio(solver.WithTimeout(time.Minute), solver.WithTracer(solver.LogrusTracer{Logger: log}))
				Expect(err).ToNot(HaveOccurred())

				runner, err := attempt.NewRunner(
					func(ctx context.Context) (aedificium.Judge, error) {
						c := remote.NewClient(cfg, log)
						if err := c.Select(ctx, problem); err != nil {
							return nil, err
						}
						return c, nil
					},
					attempt.WithMaxAttempts(5),
					attempt.WithGate(gate.New(gate.Permissive())),
					attempt.WithSolver(portfolio),
					attempt.WithLogger(log),
				)
				Expect(err).ToNot(HaveOccurred())

				res, err := runner.Run(ctx)
				Expect(err).ToNot(HaveOccurred())
				Expect(res.Outcome).To(Equal(attempt.Solved))
				Logf("%s solved by attempt %d in %s", problem, res.Index, res.Elapsed)

				server.mu.Lock()
				defer server.mu.Unlock()
				Expect(server.verdicts).To(HaveLen(server.selects))
				Expect(server.verdicts[len(server.verdicts)-1]).To(BeTrue())
				Expect(server.sim.Explores()).To(Equal(1))
			},
			Entry("probatio", "probatio"),
			Entry("primus", "primus"),
			Entry("secundus", "secundus"),
		)
	})
})
