package syncer

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/imamik/tracksync/internal/config"
	"github.com/imamik/tracksync/internal/liveness"
	"github.com/imamik/tracksync/internal/logging"
	"github.com/imamik/tracksync/internal/metrics"
	testutil "github.com/imamik/tracksync/internal/testing"
	"github.com/imamik/tracksync/internal/tracker"
)

const (
	t1 = "cfme-5.10.0.33-20190312"
	t2 = "cfme-5.9.4.2-20180709"
	t3 = "miq-nightly-201807091200"
)

const registryYAML = `
management_systems:
  rhv-a:
    type: rhevm
  rhv-b:
    type: rhevm
  hetzner:
    type: hcloud
    ipaddress: 10.0.0.9
`

type stubSource map[string]func() ([]string, error)

func (s stubSource) ListTemplates(_ context.Context, key string) ([]string, error) {
	fn, ok := s[key]
	if !ok {
		return nil, errors.New("no stub for " + key)
	}
	return fn()
}

func reports(names ...string) func() ([]string, error) {
	return func() ([]string, error) { return names, nil }
}

var _ = Describe("Syncer", func() {
	var (
		ft      *testutil.FakeTracker
		client  *tracker.Client
		reg     *config.Registry
		source  stubSource
		alive   map[string]bool
		probed  []string
		m       *metrics.Metrics
		newSync func() *Syncer
	)

	BeforeEach(func() {
		ft = testutil.NewFakeTracker(GinkgoT())

		var err error
		client, err = tracker.NewClient(ft.URL(), tracker.WithRetry(0, 0))
		Expect(err).NotTo(HaveOccurred())

		reg, err = config.ParseRegistry([]byte(registryYAML))
		Expect(err).NotTo(HaveOccurred())

		log, err := logging.New(logging.Options{Level: "debug", Output: GinkgoWriter})
		Expect(err).NotTo(HaveOccurred())

		source = stubSource{}
		alive = map[string]bool{}
		probed = nil
		m = metrics.New()

		newSync = func() *Syncer {
			return New(Config{
				Registry: reg,
				Source:   source,
				Checker: liveness.CheckerFunc(func(_ context.Context, addr string) bool {
					probed = append(probed, addr)
					return alive[addr]
				}),
				Tracker:  client,
				Metrics:  m,
				Timeouts: &config.Timeouts{Ping: time.Second, Collect: 5 * time.Second},
				Logger:   log,
			})
		}
	})

	Context("with every provider healthy", func() {
		BeforeEach(func() {
			alive["10.0.0.9"] = true
			source["rhv-a"] = reports(t1, t2+"-largedb", "Blank")
			source["rhv-b"] = reports(t1, "s_tpl_downstream-510z_abc")
			source["hetzner"] = reports(t3, "fedora-38")
		})

		It("tracks every classified template on the providers that report it", func() {
			report, err := newSync().Run(context.Background(), Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(ft.Associations()).To(Equal([]string{
				t1 + "_rhv-a",
				t1 + "_rhv-b",
				t3 + "_hetzner",
			}))
			Expect(ft.Groups()).To(HaveKey("downstream-510z"))
			Expect(ft.Groups()).To(HaveKey("upstream"))
			Expect(ft.Groups()).NotTo(HaveKey("sprout"))

			Expect(report.Queried).To(Equal([]string{"hetzner", "rhv-a", "rhv-b"}))
			Expect(report.Unresponsive).To(BeEmpty())
			Expect(report.Skipped).To(HaveLen(3))
			Expect(report.Reconcile.Added).To(Equal(3))
			Expect(probed).To(Equal([]string{"10.0.0.9"}))
		})

		It("is idempotent", func() {
			_, err := newSync().Run(context.Background(), Options{})
			Expect(err).NotTo(HaveOccurred())
			posts := ft.CountRequests("POST /api/providertemplate/")

			report, err := newSync().Run(context.Background(), Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Reconcile.Added).To(BeZero())
			Expect(report.Reconcile.AlreadyTracked).To(Equal(3))
			Expect(ft.CountRequests("POST /api/providertemplate/")).To(Equal(posts))
		})

		It("prunes templates no provider reports anymore", func() {
			ft.Seed(t2, "rhv-a")
			ft.Seed(t2, "rhv-b")

			report, err := newSync().Run(context.Background(), Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(ft.Associations()).NotTo(ContainElement(HavePrefix(t2)))
			Expect(ft.Templates()).NotTo(ContainElement(t2))
			Expect(report.Reconcile.Pruned).To(Equal(2))
			Expect(report.Reconcile.TemplatesDeleted).To(Equal(1))
		})

		It("only touches the selected providers", func() {
			ft.Seed(t2, "rhv-b")

			report, err := newSync().Run(context.Background(), Options{ProviderKeys: []string{"rhv-a"}})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Queried).To(Equal([]string{"rhv-a"}))
			Expect(ft.Associations()).To(Equal([]string{t1 + "_rhv-a", t2 + "_rhv-b"}))
			Expect(report.Reconcile.SkippedUnknown).To(Equal(1))
		})

		It("marks new templates usable when asked", func() {
			_, err := newSync().Run(context.Background(), Options{MarkUsable: testutil.BoolPtr(true)})
			Expect(err).NotTo(HaveOccurred())

			Expect(ft.Usable(t1 + "_rhv-a")).To(HaveValue(BeTrue()))
		})

		It("writes nothing in a dry run", func() {
			ft.Seed(t2, "rhv-a")

			report, err := newSync().Run(context.Background(), Options{DryRun: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Reconcile.Added).To(Equal(3))
			Expect(report.Reconcile.Pruned).To(Equal(1))
			Expect(ft.CountRequests("GET")).To(Equal(len(ft.Requests())))
			Expect(ft.Associations()).To(Equal([]string{t2 + "_rhv-a"}))
		})

		It("records run metrics", func() {
			_, err := newSync().Run(context.Background(), Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(promtestutil.GatherAndCount(m.Registry, "tracksync_provider_up")).To(Equal(3))
			Expect(promtestutil.GatherAndCount(m.Registry, "tracksync_last_run_timestamp_seconds")).To(Equal(1))
		})
	})

	Context("with failing providers", func() {
		BeforeEach(func() {
			alive["10.0.0.9"] = false
			source["rhv-a"] = reports(t1)
			source["rhv-b"] = func() ([]string, error) { return nil, errors.New("engine unreachable") }
			source["hetzner"] = reports(t3)

			ft.Seed(t1, "rhv-a")
			ft.Seed(t1, "rhv-b")
			ft.Seed(t2, "rhv-b")
			ft.Seed(t3, "hetzner")
		})

		It("keeps associations of unresponsive providers", func() {
			report, err := newSync().Run(context.Background(), Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Dead).To(Equal([]string{"hetzner"}))
			Expect(report.Unresponsive).To(Equal([]string{"hetzner", "rhv-b"}))
			Expect(ft.CountRequests("DELETE")).To(BeZero())
			Expect(ft.Associations()).To(Equal([]string{
				t1 + "_rhv-a",
				t1 + "_rhv-b",
				t2 + "_rhv-b",
				t3 + "_hetzner",
			}))
		})
	})

	It("fails on an unknown provider key", func() {
		_, err := newSync().Run(context.Background(), Options{ProviderKeys: []string{"nope"}})
		Expect(err).To(MatchError(config.ErrUnknownProvider))
	})

	It("fails when the tracker cannot be listed", func() {
		source["rhv-a"] = reports(t1)
		source["rhv-b"] = reports()
		source["hetzner"] = reports()
		alive["10.0.0.9"] = true
		ft.FailWith("GET", "/api/providertemplate/", 500)

		report, err := newSync().Run(context.Background(), Options{})
		Expect(err).To(HaveOccurred())
		Expect(report.Collection.Observed).To(HaveKey(t1))
	})
})
