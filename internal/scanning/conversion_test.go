package scanning

import (
	"bytes"
	"image"
	"image/jpeg"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DecodeImage", func() {
	When("the bytes are a PNG", func() {
		It("should decode the image", func() {
			img, err := DecodeImage(samplePNG(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(4))
		})

		It("should sniff the type when none is declared", func() {
			img, err := DecodeImage(samplePNG(), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(img).NotTo(BeNil())
		})
	})

	When("the bytes are not an image", func() {
		It("returns a decode failure", func() {
			_, err := DecodeImage([]byte("definitely not an image"), "image/jpeg")
			Expect(err).To(MatchError(ErrDecodeFailure))
		})
	})
})

var _ = Describe("PrepareImage", func() {
	It("should pass JPEG through untouched", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil)).To(Succeed())

		data, mimeType := PrepareImage(buf.Bytes(), "image/jpeg")
		Expect(mimeType).To(Equal("image/jpeg"))
		Expect(data).To(Equal(buf.Bytes()))
	})

	It("should detect the type of octet-stream uploads", func() {
		png := samplePNG()
		data, mimeType := PrepareImage(png, "application/octet-stream")
		Expect(mimeType).To(Equal("image/png"))
		Expect(data).To(Equal(png))
	})

	It("should strip content type parameters", func() {
		_, mimeType := PrepareImage(samplePNG(), "image/png; charset=binary")
		Expect(mimeType).To(Equal("image/png"))
	})

	When("the bytes cannot be converted", func() {
		It("should keep the raw bytes and the declared image type", func() {
			bmp := append([]byte("BM"), make([]byte, 60)...)
			data, mimeType := PrepareImage(bmp, "image/bmp")
			Expect(data).To(Equal(bmp))
			Expect(mimeType).To(Equal("image/bmp"))
		})

		It("should label unknown bytes as JPEG", func() {
			data, mimeType := PrepareImage([]byte("garbage"), "")
			Expect(data).To(Equal([]byte("garbage")))
			Expect(mimeType).To(Equal("image/jpeg"))
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should recognise HEIC brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmif1\x00\x00"))).To(BeTrue())
	})

	It("should reject other containers", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom\x00\x00"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})

var _ = Describe("dataURI", func() {
	It("should build a base64 data URI", func() {
		uri := dataURI([]byte("abc"), "image/png")
		Expect(uri).To(Equal("data:image/png;base64,YWJj"))
		Expect(strings.HasPrefix(uri, "data:image/png")).To(BeTrue())
	})
})
