package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":     "gen-1",
		"object": "chat.completion",
		"model":  "openai/gpt-4o",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

var _ = Describe("OpenRouter", func() {
	var (
		server  *ghttp.Server
		scanner     *OpenRouter
		timeout     time.Duration
		imageData   []byte
		contentType string
		data        *BillData
		err         error
		elapsed     time.Duration
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		timeout = 5 * time.Second
		imageData = samplePNG()
		contentType = "image/png"
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		var newErr error
		scanner, newErr = NewOpenRouter(OpenRouterConfig{
			APIKey:   "test-key",
			BaseURL:  server.URL() + "/api/v1",
			SiteURL:  "https://xpense.example",
			SiteName: "Xpense",
			Timeout:  timeout,
		})
		Expect(newErr).NotTo(HaveOccurred())
		start := time.Now()
		data, err = scanner.ScanBill(context.Background(), "openai/gpt-4o", imageData, contentType)
		elapsed = time.Since(start)
	})

	When("the model returns bill JSON", func() {
		var captured map[string]any

		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/v1/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer test-key"),
				ghttp.VerifyHeaderKV("HTTP-Referer", "https://xpense.example"),
				ghttp.VerifyHeaderKV("X-Title", "Xpense"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &captured)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion(`{"total_amount": 45.00, "description": "Team lunch"}`)),
			))
		})

		It("should return the bill data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.TotalAmount.Decimal.StringFixed(2)).To(Equal("45.00"))
			Expect(data.Description).To(Equal("Team lunch"))
		})

		It("should request the named model", func() {
			Expect(captured["model"]).To(Equal("openai/gpt-4o"))
		})

		It("should send the image as a data URI", func() {
			messages := captured["messages"].([]any)
			content := messages[0].(map[string]any)["content"].([]any)
			Expect(content).To(HaveLen(2))
			imagePart := content[1].(map[string]any)
			url := imagePart["image_url"].(map[string]any)["url"].(string)
			Expect(url).To(HavePrefix("data:image/png;base64,"))
		})
	})

	When("the image is a format the local decoder does not know", func() {
		var captured map[string]any

		BeforeEach(func() {
			imageData = append([]byte("BM"), make([]byte, 60)...)
			contentType = "image/bmp"
			server.AppendHandlers(ghttp.CombineHandlers(
				func(w http.ResponseWriter, r *http.Request) {
					Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion(`{"total_amount": 5.00, "description": "Parking"}`)),
			))
		})

		It("should still send the raw bytes to the model", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.TotalAmount.Decimal.StringFixed(2)).To(Equal("5.00"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))

			messages := captured["messages"].([]any)
			content := messages[0].(map[string]any)["content"].([]any)
			url := content[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
			Expect(url).To(Equal("data:image/bmp;base64," + base64.StdEncoding.EncodeToString(imageData)))
		})
	})

	When("the model does not answer within the timeout", func() {
		BeforeEach(func() {
			timeout = 200 * time.Millisecond
			server.AppendHandlers(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(3 * time.Second):
				case <-r.Context().Done():
				}
			})
		})

		It("returns a model unavailable error", func() {
			Expect(err).To(MatchError(ErrModelUnavailable))
			Expect(data).To(BeNil())
		})

		It("should give up well before the model would answer", func() {
			Expect(elapsed).To(BeNumerically("<", time.Second))
		})
	})

	When("the model wraps its answer in a code fence", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK,
				chatCompletion("```json\n{\"total_amount\": 9.99, \"description\": \"Coffee\"}\n```")))
		})

		It("should return the bill data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.TotalAmount.Decimal.StringFixed(2)).To(Equal("9.99"))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion("I cannot read this image.")))
		})

		It("returns a malformed response error", func() {
			Expect(err).To(MatchError(ErrModelResponseMalformed))
			Expect(data).To(BeNil())
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusServiceUnavailable, map[string]any{
				"error": map[string]any{"message": "model overloaded", "code": 503},
			}))
		})

		It("returns a model unavailable error", func() {
			Expect(err).To(MatchError(ErrModelUnavailable))
		})
	})

	When("the response has no choices", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"id":      "gen-2",
				"choices": []any{},
			}))
		})

		It("returns a model unavailable error", func() {
			Expect(err).To(MatchError(ErrModelUnavailable))
		})
	})
})

var _ = Describe("NewOpenRouter", func() {
	It("returns an error without an API key", func() {
		_, err := NewOpenRouter(OpenRouterConfig{})
		Expect(err).To(HaveOccurred())
	})
})
