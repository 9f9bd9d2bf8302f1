package server_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/threadline-ai/threadline/citest/testutil"
)

type connectedEvent struct {
	SessionID string `json:"sessionId"`
	ThreadID  string `json:"threadId"`
	Restored  bool   `json:"restored"`
}

// connectWS opens an authenticated websocket and waits for the
// connected handshake
func connectWS(token, sessionID string) (*testutil.WSClient, connectedEvent) {
	ws := testServer.WSClient()
	err := ws.Connect(testutil.ConnectParams{
		SessionID: sessionID,
		Token:     token,
	})
	Expect(err).NotTo(HaveOccurred())

	frame, err := ws.WaitForEvent("connected", 5*time.Second)
	Expect(err).NotTo(HaveOccurred())

	var evt connectedEvent
	Expect(json.Unmarshal(frame.Data, &evt)).To(Succeed())
	Expect(evt.SessionID).NotTo(BeEmpty())
	return ws, evt
}

var _ = Describe("Session Lifecycle", func() {
	var token string

	BeforeEach(func() {
		token = login()
	})

	Describe("Websocket connect", func() {
		It("should create a fresh session on first connect", func() {
			ws, evt := connectWS(token, "")
			defer ws.Close()

			Expect(evt.Restored).To(BeFalse())
		})

		It("should reject connects without a token", func() {
			ws := testServer.WSClient()
			err := ws.Connect(testutil.ConnectParams{})
			Expect(err).To(HaveOccurred())
		})

		It("should restore the session on reconnect with the same id", func() {
			ws, evt := connectWS(token, "")
			sessionID := evt.SessionID
			ws.Close()

			// Reconnect before the cleanup window elapses.
			ws2, evt2 := connectWS(token, sessionID)
			defer ws2.Close()

			Expect(evt2.SessionID).To(Equal(sessionID))
			Expect(evt2.Restored).To(BeTrue())
		})
	})

	Describe("Method invocation", func() {
		It("should accept chat settings updates", func() {
			ws, _ := connectWS(token, "")
			defer ws.Close()

			err := ws.Invoke("update_chat_settings", map[string]any{
				"model":       "small",
				"temperature": 0.2,
			})
			Expect(err).NotTo(HaveOccurred())

			// The handler is fire-and-forget; an error frame is the
			// only failure signal.
			Consistently(func() int {
				return len(ws.Events("error"))
			}, 300*time.Millisecond, 50*time.Millisecond).Should(BeZero())
		})

		It("should emit a generic error frame when a handler fails", func() {
			ws, _ := connectWS(token, "")
			defer ws.Close()

			Expect(ws.Invoke("open_tool_session", map[string]any{
				"name": "not-configured",
			})).To(Succeed())

			frame, err := ws.WaitForEvent("error", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())

			var payload map[string]string
			Expect(json.Unmarshal(frame.Data, &payload)).To(Succeed())
			Expect(payload["message"]).NotTo(BeEmpty())

			// The message is a generic support message, not the
			// internal error.
			Expect(payload["message"]).NotTo(ContainSubstring("not-configured"))
		})
	})

	Describe("File store", func() {
		It("should persist an upload and return only the file id", func() {
			ws, evt := connectWS(token, "")
			defer ws.Close()

			content := []byte(`{"hello":"world"}`)
			id, err := client.UploadFile(ctx, evt.SessionID, "greeting.json", "application/json", content)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			files, err := client.ListSessionFiles(ctx, evt.SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(HaveLen(1))
			Expect(files[0].ID).To(Equal(id))
			Expect(files[0].Name).To(Equal("greeting.json"))
			Expect(files[0].Type).To(Equal("application/json"))
			Expect(files[0].Size).To(Equal(int64(len(content))))
		})

		It("should return 404 for an unknown session", func() {
			resp, err := client.Get(ctx, "/session/does-not-exist/files")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(404))

			var body map[string]map[string]any
			Expect(resp.JSON(&body)).To(Succeed())
			Expect(body["error"]["code"]).To(Equal("NOT_FOUND"))
		})
	})

	Describe("Delayed cleanup", func() {
		It("should delete the session after the cleanup window", func() {
			ws, evt := connectWS(token, "")
			sessionID := evt.SessionID
			ws.Close()

			// The test server uses a one second cleanup delay.
			Eventually(func() int {
				resp, err := client.Get(ctx, "/session/"+sessionID+"/files")
				if err != nil {
					return 0
				}
				return resp.StatusCode
			}, 5*time.Second, 100*time.Millisecond).Should(Equal(404))
		})
	})
})
