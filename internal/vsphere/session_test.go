package vsphere_test

import (
	"context"
	"crypto/tls"
	"errors"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/vmware/govmomi/simulator"
	"github.com/vmware/govmomi/vim25/soap"

	"github.com/kubev2v/vsan-health/internal/vsphere"
)

func endpoint(srv *simulator.Server) string {
	u := url.URL{Scheme: srv.URL.Scheme, Host: srv.URL.Host, Path: srv.URL.Path}
	return u.String()
}

var _ = Describe("Session", func() {
	var (
		ctx   context.Context
		model *simulator.Model
		srv   *simulator.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		model = simulator.VPX()
		Expect(model.Create()).To(Succeed())
		srv = model.Service.NewServer()
	})

	AfterEach(func() {
		srv.Close()
		model.Remove()
	})

	creds := func(password string) vsphere.Credentials {
		return vsphere.Credentials{Host: endpoint(srv), Username: "user", Password: password}
	}

	Context("Open", func() {
		It("logs in to a vCenter", func() {
			s, err := vsphere.Open(ctx, creds("pass"), vsphere.Options{Insecure: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.State()).To(Equal(vsphere.StateAuthenticated))
			Expect(s.About().ApiType).To(Equal("VirtualCenter"))
			Expect(s.Vim()).NotTo(BeNil())
			Expect(s.Close(ctx)).To(Succeed())
		})

		It("reports bad credentials", func() {
			_, err := vsphere.Open(ctx, creds(""), vsphere.Options{Insecure: true})

			var authErr *vsphere.ErrAuthentication
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(authErr.Reason).To(Equal(vsphere.AuthBadCredentials))
		})

		It("reports an unreachable host", func() {
			_, err := vsphere.Open(ctx, vsphere.Credentials{Host: "127.0.0.1:1", Username: "user", Password: "pass"}, vsphere.Options{Insecure: true})

			var authErr *vsphere.ErrAuthentication
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(authErr.Reason).To(Equal(vsphere.AuthUnreachable))
		})

		It("rejects an empty host", func() {
			_, err := vsphere.Open(ctx, vsphere.Credentials{Username: "user", Password: "pass"}, vsphere.Options{})

			var authErr *vsphere.ErrAuthentication
			Expect(errors.As(err, &authErr)).To(BeTrue())
		})

		It("rejects an endpoint older than the minimum API version", func() {
			_, err := vsphere.Open(ctx, creds("pass"), vsphere.Options{Insecure: true, MinAPIMajor: 99})

			var unsupported *vsphere.ErrCapabilityUnsupported
			Expect(errors.As(err, &unsupported)).To(BeTrue())
		})
	})

	Context("certificate thumbprint", func() {
		var (
			tlsModel *simulator.Model
			tlsSrv   *simulator.Server
		)

		BeforeEach(func() {
			tlsModel = simulator.VPX()
			Expect(tlsModel.Create()).To(Succeed())
			tlsModel.Service.TLS = new(tls.Config)
			tlsSrv = tlsModel.Service.NewServer()
		})

		AfterEach(func() {
			tlsSrv.Close()
			tlsModel.Remove()
		})

		tlsCreds := func() vsphere.Credentials {
			return vsphere.Credentials{Host: endpoint(tlsSrv), Username: "user", Password: "pass"}
		}

		It("accepts a lower case thumbprint", func() {
			thumbprint := strings.ToLower(soap.ThumbprintSHA1(tlsSrv.Certificate()))

			s, err := vsphere.Open(ctx, tlsCreds(), vsphere.Options{Thumbprint: thumbprint})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close(ctx)).To(Succeed())
		})

		It("rejects a thumbprint of another certificate", func() {
			_, err := vsphere.Open(ctx, tlsCreds(), vsphere.Options{
				Thumbprint: "00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff:00:11:22:33",
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Context("Close", func() {
		It("is idempotent and fails later queries", func() {
			s, err := vsphere.Open(ctx, creds("pass"), vsphere.Options{Insecure: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Close(ctx)).To(Succeed())
			Expect(s.Close(ctx)).To(Succeed())
			Expect(s.State()).To(Equal(vsphere.StateClosed))

			_, err = s.Inventory().Datacenters(ctx)
			Expect(err).To(MatchError(vsphere.ErrSessionClosed))
			_, err = vsphere.NewResolver(s.Inventory()).Resolve(ctx, "DC0_C0")
			Expect(err).To(MatchError(vsphere.ErrSessionClosed))
		})
	})

	Context("inventory", func() {
		var s *vsphere.Session

		BeforeEach(func() {
			var err error
			s, err = vsphere.Open(ctx, creds("pass"), vsphere.Options{Insecure: true})
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(s.Close(ctx)).To(Succeed())
		})

		It("finds the cluster and its hosts", func() {
			inv := s.Inventory()

			dcs, err := inv.Datacenters(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(dcs).To(HaveLen(1))
			Expect(dcs[0].Name).To(Equal("DC0"))

			ref, err := inv.FindChild(ctx, dcs[0].HostFolder, "DC0_C0")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref).NotTo(BeNil())
			Expect(ref.Type).To(Equal("ClusterComputeResource"))

			info, err := inv.Cluster(ctx, *ref)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Name).To(Equal("DC0_C0"))
			Expect(info.Hosts).NotTo(BeEmpty())

			names, err := inv.HostNames(ctx, info.Hosts)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(HaveLen(len(info.Hosts)))
			for _, name := range names {
				Expect(name).To(HavePrefix("DC0_C0_H"))
			}
		})

		It("returns not found for an unknown cluster", func() {
			_, err := vsphere.NewResolver(s.Inventory()).Resolve(ctx, "Ghost")

			var notFound *vsphere.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Name).To(Equal("Ghost"))
		})

		It("reads the state of a cluster host", func() {
			inv := s.Inventory()
			dcs, err := inv.Datacenters(ctx)
			Expect(err).NotTo(HaveOccurred())
			ref, err := inv.FindChild(ctx, dcs[0].HostFolder, "DC0_C0")
			Expect(err).NotTo(HaveOccurred())
			info, err := inv.Cluster(ctx, *ref)
			Expect(err).NotTo(HaveOccurred())

			state, err := s.Queries().HostState(ctx, info.Hosts[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Name).To(HavePrefix("DC0_C0_H"))
			Expect(state.ConnectionState).To(Equal("connected"))
		})
	})
})
