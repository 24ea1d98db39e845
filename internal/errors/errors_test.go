package errors_test

import (
	. "github.com/sabouaram/staticd/internal/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	testCode1 CodeError = MinAvailable + iota
	testCode2
)

var _ = Describe("CodeError", func() {
	BeforeEach(func() {
		if !ExistInMapMessage(testCode1) {
			RegisterIdFctMessage(testCode1, func(code CodeError) string {
				switch code {
				case testCode1:
					return "test error one"
				case testCode2:
					return "test error two"
				default:
					return ""
				}
			})
		}
	})

	Describe("code to error construction", func() {
		It("Error attaches the registered message", func() {
			err := testCode1.Error()
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("test error one"))
			Expect(err.IsCode(testCode1)).To(BeTrue())
			Expect(err.IsCode(testCode2)).To(BeFalse())
		})

		It("Message falls back to UnknownMessage for an unregistered code", func() {
			Expect(CodeError(9999).Message()).To(Equal(UnknownMessage))
		})
	})

	Describe("parent chains", func() {
		It("Add attaches parents and HasParent reports them", func() {
			err := testCode1.Error(nil)
			Expect(err.HasParent()).To(BeFalse())

			err.Add(testCode2.Error())
			Expect(err.HasParent()).To(BeTrue())
			Expect(err.HasCode(testCode2)).To(BeTrue())
		})

		It("Add keeps the codes of a parent that is itself a chain reachable", func() {
			inner := testCode2.Error()
			inner.Add(testCode1.Error())

			outer := testCode1.Error()
			outer.Add(inner)

			Expect(outer.GetParentCode()).To(ContainElement(testCode2))
		})
	})

	Describe("IfError", func() {
		It("returns nil when every argument is nil", func() {
			Expect(testCode1.IfError(nil, nil)).To(BeNil())
		})

		It("wraps the non-nil arguments under the code", func() {
			err := testCode1.IfError(nil, errAssertion{"boom"})
			Expect(err).NotTo(BeNil())
			Expect(err.IsCode(testCode1)).To(BeTrue())
		})
	})

	Describe("standard library interop", func() {
		It("Unwrap exposes parents to errors.Is/errors.As", func() {
			err := testCode1.Error(testCode2.Error())
			Expect(err.Unwrap()).To(HaveLen(1))
		})
	})
})

type errAssertion struct{ msg string }

func (e errAssertion) Error() string { return e.msg }
