package server_test

import (
	"context"
	"errors"
	"testing"

	"github.com/joho/godotenv"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/threadline-ai/threadline/citest/testutil"
	"github.com/threadline-ai/threadline/pkg/types"
)

const (
	testUsername = "admin"
	testPassword = "correct horse battery staple"
)

var (
	testServer *testutil.TestServer
	client     *testutil.TestClient
	ctx        context.Context
)

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

var _ = BeforeSuite(func() {
	// Load environment variables from .env file first
	_ = godotenv.Load("../../.env")

	ctx = context.Background()

	var err error
	testServer, err = testutil.StartTestServer(
		testutil.WithPasswordAuth(verifyPassword),
	)
	Expect(err).NotTo(HaveOccurred())

	client = testServer.Client()
})

var _ = AfterSuite(func() {
	if testServer != nil {
		Expect(testServer.Stop()).To(Succeed())
	}
})

func verifyPassword(ctx context.Context, username, password string) (*types.User, error) {
	if username == testUsername && password == testPassword {
		return &types.User{ID: username, DisplayName: "Admin"}, nil
	}
	return nil, errors.New("invalid credentials")
}

// login fetches a fresh bearer token for specs that need one
func login() string {
	resp, err := client.Login(ctx, testUsername, testPassword)
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.AccessToken).NotTo(BeEmpty())
	return resp.AccessToken
}
