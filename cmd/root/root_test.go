package root_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aedificium/mapper/cmd/root"
	"github.com/aedificium/mapper/pkg/aedificium"
)

func TestRoot(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mapper CLI Suite")
}

func execute(args ...string) (string, error) {
	cmd := root.NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("plan", func() {
	It("prints a balanced plan of 18 doors per room", func() {
		out, err := execute("plan", "--rooms", "4")
		Expect(err).ToNot(HaveOccurred())
		p, err := aedificium.ParsePlan(strings.TrimSpace(out))
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Validate(4)).To(Succeed())
	})
	It("rejects an empty building", func() {
		_, err := execute("plan", "--rooms", "0")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("dimacs", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("encodes an observation and solves the resulting formula", func() {
		path := filepath.Join(dir, "walk.cnf")
		_, err := execute("dimacs", "encode", "--rooms", "3", "--seed", "4", "-o", path)
		Expect(err).ToNot(HaveOccurred())

		data, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("c role pair "))
		Expect(string(data)).To(ContainSubstring("p cnf "))

		out, err := execute("dimacs", "solve", "--workers", "2", path)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HavePrefix("solution found:\n"))
		Expect(out).To(ContainSubstring("1 = true\n"))
	})
	It("reports unsatisfiable formulas", func() {
		path := filepath.Join(dir, "unsat.cnf")
		Expect(os.WriteFile(path, []byte("p cnf 1 2\n1 0\n-1 0\n"), 0o600)).To(Succeed())
		out, err := execute("dimacs", "solve", path)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HavePrefix("no solution found: "))
	})
	It("fails on a missing file", func() {
		_, err := execute("dimacs", "solve", filepath.Join(dir, "absent.cnf"))
		Expect(err).To(MatchError(ContainSubstring("not found")))
	})
	It("rejects a trace that does not fit the plan", func() {
		_, err := execute("dimacs", "encode", "--rooms", "1", "--allow-any-length", "--plan", "01", "--trace", "00")
		Expect(err).To(MatchError(aedificium.ErrMalformedTrace))
	})
})

var _ = Describe("solve", func() {
	It("maps local buildings", func() {
		out, err := execute("solve", "--rooms", "6", "--seed", "3", "--attempts", "5", "--workers", "2")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring(": solved\n"))

		var guess aedificium.Guess
		Expect(json.Unmarshal([]byte(out[strings.Index(out, "{"):]), &guess)).To(Succeed())
		Expect(guess.Rooms).To(HaveLen(6))
		Expect(guess.Connections).To(HaveLen(18))
	})
	It("writes metrics when asked to", func() {
		path := filepath.Join(GinkgoT().TempDir(), "metrics.prom")
		// the metrics are written whatever the attempts ended in
		_, _ = execute("solve", "--rooms", "3", "--attempts", "3", "--workers", "1", "--metrics-file", path)
		data, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("mapper_attempts_total"))
	})
	It("requires a problem name for the remote judge", func() {
		_, err := execute("solve", "--remote")
		Expect(err).To(MatchError(ContainSubstring("--problem")))
	})
	It("rejects unknown label modes", func() {
		_, err := execute("solve", "--labels", "striped")
		Expect(err).To(HaveOccurred())
	})
})
