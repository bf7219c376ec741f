package cliui_test

import (
	"bytes"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/cliui"
)

var _ = Describe("cliui", func() {
	It("formats durations", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})

	It("marks results", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})

	It("returns the step error and prints the message", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "loading session", func() error { return errors.New("boom") })
		Expect(err).To(MatchError("boom"))
		Expect(buf.String()).To(ContainSubstring("loading session"))
	})

	It("renders key value listings", func() {
		var buf bytes.Buffer
		cliui.RenderKV(&buf, "Stats", []cliui.KV{
			{Key: "turns", Value: "6"},
			{Key: "has_summary", Value: "true"},
		})
		Expect(buf.String()).To(ContainSubstring("Stats"))
		Expect(buf.String()).To(ContainSubstring("turns"))
		Expect(buf.String()).To(ContainSubstring("true"))
	})

	It("aligns keys by display width", func() {
		var buf bytes.Buffer
		cliui.RenderKV(&buf, "", []cliui.KV{
			{Key: "a", Value: "1"},
			{Key: "ccc", Value: "3"},
		})
		Expect(buf.String()).To(MatchRegexp(`a\s+1`))
		Expect(buf.String()).To(ContainSubstring("3"))
	})

	It("wraps at 80 columns when not writing to a terminal", func() {
		f, err := os.CreateTemp(GinkgoT().TempDir(), "out")
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		Expect(cliui.WrapWidth(f)).To(Equal(80))
	})

	It("labels roles", func() {
		Expect(cliui.RoleLabel("user")).To(ContainSubstring("User"))
		Expect(cliui.RoleLabel("assistant")).To(ContainSubstring("Assistant"))
	})

	It("renders markdown", func() {
		out, err := cliui.RenderMarkdown("**revenue**")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("revenue"))
	})
})
