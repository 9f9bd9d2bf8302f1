package server_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/threadline-ai/threadline/citest/testutil"
)

var _ = Describe("Authentication Endpoints", func() {
	Describe("GET /auth/config", func() {
		It("should report the auth configuration snapshot", func() {
			cfg, err := client.AuthConfig(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg["requireLogin"]).To(BeTrue())
			Expect(cfg["passwordAuth"]).To(BeTrue())
			Expect(cfg["headerAuth"]).To(BeFalse())
			Expect(cfg["defaultTheme"]).To(Equal("dark"))
		})
	})

	Describe("POST /auth/login", func() {
		It("should issue a bearer token for valid credentials", func() {
			resp, err := client.Post(ctx, "/auth/login", map[string]string{
				"username": testUsername,
				"password": testPassword,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			var login testutil.LoginResponse
			Expect(resp.JSON(&login)).To(Succeed())
			Expect(login.AccessToken).NotTo(BeEmpty())
			Expect(login.TokenType).To(Equal("bearer"))
			Expect(login.User["identifier"]).To(Equal(testUsername))

			cookie := resp.Cookie("threadline_access_token")
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.Value).NotTo(BeEmpty())
			Expect(cookie.HttpOnly).To(BeTrue())
		})

		It("should reject bad credentials with 401 and Clear-Site-Data", func() {
			resp, err := client.Post(ctx, "/auth/login", map[string]string{
				"username": testUsername,
				"password": "wrong",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(401))
			Expect(resp.Headers.Get("Clear-Site-Data")).To(ContainSubstring(`"storage"`))

			var body map[string]map[string]any
			Expect(resp.JSON(&body)).To(Succeed())
			Expect(body["error"]["code"]).To(Equal("UNAUTHORIZED"))
		})
	})

	Describe("GET /auth/user", func() {
		It("should return the persisted identity for a valid token", func() {
			token := login()

			resp, err := client.Get(ctx, "/auth/user", testutil.WithBearerToken(token))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			var user map[string]any
			Expect(resp.JSON(&user)).To(Succeed())
			Expect(user["identifier"]).To(Equal(testUsername))
			Expect(user["displayName"]).To(Equal("Admin"))

			// The login reconciles the identity against the user
			// store, so lookups after it see a persisted record.
			Expect(user["persisted"]).To(BeTrue())
			Expect(user["id"]).NotTo(BeEmpty())
		})

		It("should reject a garbage token", func() {
			resp, err := client.Get(ctx, "/auth/user", testutil.WithBearerToken("not-a-token"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(401))
		})

		It("should reject a missing token when login is required", func() {
			resp, err := client.Get(ctx, "/auth/user")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(401))
		})
	})

	Describe("Session state cookie", func() {
		It("should round-trip state through the signed cookie", func() {
			resp, err := client.Put(ctx, "/auth/state", map[string]any{
				"sidebar": "collapsed",
				"volume":  0.5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			cookie := resp.Cookie("threadline_session")
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.Value).NotTo(BeEmpty())

			read, err := client.Get(ctx, "/auth/state",
				testutil.WithHeader("Cookie", "threadline_session="+cookie.Value))
			Expect(err).NotTo(HaveOccurred())
			Expect(read.IsSuccess()).To(BeTrue())

			var state map[string]any
			Expect(read.JSON(&state)).To(Succeed())
			Expect(state["sidebar"]).To(Equal("collapsed"))
			Expect(state["volume"]).To(Equal(0.5))
		})

		It("should return an empty object without the cookie", func() {
			resp, err := client.Get(ctx, "/auth/state")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.String()).To(MatchJSON(`{}`))
		})

		It("should reject a tampered state cookie", func() {
			resp, err := client.Get(ctx, "/auth/state",
				testutil.WithHeader("Cookie", "threadline_session=tampered"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(401))
		})
	})

	Describe("POST /auth/logout", func() {
		It("should expire both auth cookies", func() {
			resp, err := client.Post(ctx, "/auth/logout", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			access := resp.Cookie("threadline_access_token")
			Expect(access).NotTo(BeNil())
			Expect(access.MaxAge).To(BeNumerically("<", 0))

			state := resp.Cookie("threadline_session")
			Expect(state).NotTo(BeNil())
			Expect(state.MaxAge).To(BeNumerically("<", 0))
		})
	})
})
