package server_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/threadline-ai/threadline/citest/testutil"
)

var _ = Describe("Event Streaming", func() {
	var sse *testutil.SSEClient

	BeforeEach(func() {
		sse = testServer.SSEClient()
		Expect(sse.Connect(ctx, "/event")).To(Succeed())

		_, err := sse.WaitForStreamEvent("server.connected", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sse.Close()
	})

	It("should stream session lifecycle events", func() {
		token := login()
		ws, evt := connectWS(token, "")
		defer ws.Close()

		payload, err := sse.WaitForStreamEvent("session.connected", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		var data struct {
			SessionID string `json:"sessionID"`
			SocketID  string `json:"socketID"`
		}
		Expect(json.Unmarshal(payload.Properties, &data)).To(Succeed())
		Expect(data.SessionID).To(Equal(evt.SessionID))
		Expect(data.SocketID).NotTo(BeEmpty())
	})

	It("should stream file persistence events", func() {
		token := login()
		ws, evt := connectWS(token, "")
		defer ws.Close()

		id, err := client.UploadFile(ctx, evt.SessionID, "notes.txt", "text/plain", []byte("hello"))
		Expect(err).NotTo(HaveOccurred())

		payload, err := sse.WaitForStreamEvent("file.persisted", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		var data struct {
			SessionID string `json:"sessionID"`
			File      struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"file"`
		}
		Expect(json.Unmarshal(payload.Properties, &data)).To(Succeed())
		Expect(data.SessionID).To(Equal(evt.SessionID))
		Expect(data.File.ID).To(Equal(id))
		Expect(data.File.Name).To(Equal("notes.txt"))
	})

	It("should filter events by session when requested", func() {
		filtered := testServer.SSEClient()
		Expect(filtered.Connect(ctx, "/event?sessionID=some-other-session")).To(Succeed())
		defer filtered.Close()

		_, err := filtered.WaitForStreamEvent("server.connected", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		token := login()
		ws, _ := connectWS(token, "")
		defer ws.Close()

		// The unfiltered stream sees the connect; the filtered one
		// must not.
		_, err = sse.WaitForStreamEvent("session.connected", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		_, err = filtered.WaitForStreamEvent("session.connected", time.Second)
		Expect(err).To(HaveOccurred())
	})
})
