package validation_test

import (
	"testing"

	errors "github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/common/validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

var _ = Describe("ValidationBuilder", func() {
	It("passes when every rule holds", func() {
		v := validation.NewValidator()
		v.Field("title", "Replace toner").Required().MaxLength(255)
		v.Field("priority", "high").OneOf([]string{"low", "medium", "high", "critical"}, errors.ErrCodeInvalidPriority)
		v.Field("due_date", "2024-06-01").Date()
		Expect(v.Validate()).To(BeNil())
	})

	It("collects the first failure of every field", func() {
		v := validation.NewValidator()
		v.Field("title", "  ").Required().MaxLength(3)
		v.Field("status", "done").OneOf([]string{"new", "completed"}, errors.ErrCodeInvalidStatus)
		v.Field("quantity", 0).MinInt(1, errors.ErrCodeInvalidQuantity)

		err := v.Validate()
		Expect(err).NotTo(BeNil())
		details := err.Details.(errors.ValidationErrors)
		Expect(details.Errors).To(HaveLen(3))
		Expect(details.Errors[0].Message).To(Equal("title is required"))
		Expect(details.Errors[1].Code).To(Equal(string(errors.ErrCodeInvalidStatus)))
		Expect(details.Errors[2].Code).To(Equal(string(errors.ErrCodeInvalidQuantity)))
	})

	It("rejects malformed dates", func() {
		v := validation.NewValidator()
		v.Field("due_date", "06/01/2024").Date()
		err := v.Validate()
		Expect(err).NotTo(BeNil())
		Expect(err.Details.(errors.ValidationErrors).Errors[0].Code).To(Equal(string(errors.ErrCodeInvalidDate)))
	})

	DescribeTable("extension whitelist",
		func(name string, ok bool) {
			Expect(validation.HasAllowedExtension(name, []string{"png", "jpg", "jpeg", "gif"})).To(Equal(ok))
		},
		Entry("png", "shot.png", true),
		Entry("upper case", "SHOT.JPG", true),
		Entry("pdf", "invoice.pdf", false),
		Entry("no extension", "README", false),
		Entry("double extension", "evil.png.exe", false),
	)
})
