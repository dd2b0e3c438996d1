// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/account/remote"
	"github.com/holomush/accounts/internal/activity"
	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/store/docstore"
	"github.com/holomush/accounts/internal/store/docstore/docstoretest"
	"github.com/holomush/accounts/internal/subscription"
)

// expectCode asserts the taxonomy code of err.
func expectCode(err error, code string) {
	GinkgoHelper()
	Expect(err).To(HaveOccurred())
	Expect(account.Code(err)).To(Equal(code))
}

var _ = Describe("Accounts over the document store", func() {
	var (
		ctx       context.Context
		srv       *docstoretest.Server
		transport *http.Transport
		users     *remote.UserRepository
		subsRepo  *remote.SubscriptionRepository
		subs      *subscription.Service
		svc       *auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = docstoretest.NewServer("secret")
		transport = &http.Transport{}

		client, err := docstore.New(srv.URL(), "secret",
			docstore.WithHTTPClient(&http.Client{Transport: transport}),
			docstore.WithBackoff(time.Millisecond),
		)
		Expect(err).NotTo(HaveOccurred())

		users = remote.NewUserRepository(client)
		subsRepo = remote.NewSubscriptionRepository(client)
		recorder := activity.NewRecorder(remote.NewActivityRepository(client))

		subs, err = subscription.NewService(subsRepo, users, subscription.WithActivity(recorder))
		Expect(err).NotTo(HaveOccurred())

		svc, err = auth.NewService(users, subs, remote.NewSessionRepository(client), auth.NewArgon2idHasher(),
			auth.WithActivity(recorder),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		transport.CloseIdleConnections()
		srv.Close()
	})

	register := func(name, email, password string) (string, error) {
		return svc.Register(ctx, auth.RegisterInput{Name: name, Email: email, Company: "Acme", Password: password})
	}

	Describe("registration", func() {
		It("finds the user by any casing of the email", func() {
			id, err := register("Alice", "Alice@Ex.com", "Aa1!aaaa")
			Expect(err).NotTo(HaveOccurred())

			for _, email := range []string{"alice@ex.com", "ALICE@EX.COM", "aLiCe@eX.cOm"} {
				u, err := users.FindByEmail(ctx, email)
				Expect(err).NotTo(HaveOccurred())
				Expect(u.ID).To(Equal(id))
			}
		})

		It("rejects a second registration of the same normalized email", func() {
			_, err := register("Alice", "alice@ex.com", "Aa1!aaaa")
			Expect(err).NotTo(HaveOccurred())

			_, err = register("Alice Again", " ALICE@ex.com", "Bb2@bbbb")
			expectCode(err, account.CodeDuplicateEmail)
			Expect(srv.Children("users")).To(Equal(1))
		})

		It("writes the default subscription and a registration activity", func() {
			id, err := register("Alice", "alice@ex.com", "Aa1!aaaa")
			Expect(err).NotTo(HaveOccurred())

			sub, err := subsRepo.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Plan).To(Equal(account.PlanFree))
			Expect(sub.Status).To(Equal(account.StatusActive))
			Expect(sub.ExpiresAt.Sub(sub.CreatedAt)).To(Equal(30 * 24 * time.Hour))
			Expect(srv.Children("activities")).To(Equal(1))
		})

		It("removes the user when the subscription cannot be written", func() {
			srv.FailOn(http.MethodPut, "subscriptions", http.StatusBadRequest)

			_, err := register("Alice", "alice@ex.com", "Aa1!aaaa")
			expectCode(err, account.CodeStorageError)
			Expect(srv.Children("users")).To(BeZero())
			Expect(srv.Children("email_index")).To(BeZero())
		})

		It("reports a store outage without leaking details", func() {
			srv.FailOn(http.MethodGet, "", http.StatusBadRequest)

			_, err := register("Alice", "alice@ex.com", "Aa1!aaaa")
			expectCode(err, account.CodeStorageError)
			Expect(account.Reason(err)).NotTo(ContainSubstring("docstore"))
		})
	})

	Describe("login", func() {
		var registeredAt time.Time

		BeforeEach(func() {
			registeredAt = time.Now().UTC().Add(-time.Millisecond)
			_, err := register("Alice", "alice@ex.com", "Aa1!aaaa")
			Expect(err).NotTo(HaveOccurred())
		})

		It("records a last login at or after registration", func() {
			id, err := svc.Login(ctx, "Alice@Ex.com", "Aa1!aaaa")
			Expect(err).NotTo(HaveOccurred())

			u, err := users.GetByID(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.LastLogin).NotTo(BeNil())
			Expect(u.LastLogin.Before(registeredAt)).To(BeFalse())
		})

		It("leaves last login untouched on a wrong password", func() {
			before, err := users.FindByEmail(ctx, "alice@ex.com")
			Expect(err).NotTo(HaveOccurred())
			srv.ResetRequests()

			_, err = svc.Login(ctx, "alice@ex.com", "Aa1!aaab")
			expectCode(err, account.CodeWrongPassword)
			Expect(srv.Writes()).To(BeEmpty())

			after, err := users.FindByEmail(ctx, "alice@ex.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(after.LastLogin).To(Equal(before.LastLogin))
		})

		It("reports unknown emails", func() {
			_, err := svc.Login(ctx, "bob@ex.com", "Aa1!aaaa")
			expectCode(err, account.CodeUserNotFound)
		})

		It("opens, resolves and closes a session", func() {
			id, err := svc.Login(ctx, "alice@ex.com", "Aa1!aaaa")
			Expect(err).NotTo(HaveOccurred())

			_, token, err := svc.OpenSession(ctx, id, "ginkgo", "127.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			u, _, err := svc.CurrentUser(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Email).To(Equal("alice@ex.com"))

			Expect(svc.Logout(ctx, token)).To(Succeed())
			_, _, err = svc.CurrentUser(ctx, token)
			expectCode(err, account.CodeSessionInvalid)
		})
	})

	Describe("upgrades", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = register("Alice", "alice@ex.com", "Aa1!aaaa")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects plans outside the catalog and leaves the subscription untouched", func() {
			before, err := subsRepo.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())

			for _, plan := range []string{"platinum", "", "Premium"} {
				_, err := subs.Upgrade(ctx, id, plan)
				expectCode(err, account.CodeUnknownPlan)
			}

			after, err := subsRepo.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("reports unknown users", func() {
			_, err := subs.Upgrade(ctx, "-Nnobody", account.PlanPremium)
			expectCode(err, account.CodeUserNotFound)
			Expect(srv.Value("subscriptions/-Nnobody")).To(BeNil())
		})
	})

	It("runs the Alice scenario end to end", func() {
		id, err := register("Alice", "Alice@Ex.com", "Aa1!aaaa")
		Expect(err).NotTo(HaveOccurred())

		found, err := users.FindByEmail(ctx, "alice@ex.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(id))

		loggedIn, err := svc.Login(ctx, "alice@ex.com", "Aa1!aaaa")
		Expect(err).NotTo(HaveOccurred())
		Expect(loggedIn).To(Equal(id))

		_, err = svc.Login(ctx, "alice@ex.com", "wrong")
		expectCode(err, account.CodeWrongPassword)

		sub, err := subs.Upgrade(ctx, id, account.PlanPremium)
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.Plan).To(Equal(account.PlanPremium))

		stored, err := subsRepo.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Plan).To(Equal(account.PlanPremium))

		user, err := users.GetByID(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Plan).To(Equal(account.PlanPremium))
	})
})
