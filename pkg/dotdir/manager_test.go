package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
		GinkgoT().Setenv(dotdir.EnvDir, "")
	})

	chdir := func(dir string) {
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(origDir) })
	}

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .recall dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".recall"), 0o755)).To(Succeed())
			chdir(tmpDir)

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .recall dir when it exists and no override is provided", func() {
			local := filepath.Join(tmpDir, ".recall")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdir(tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("prefers RECALL_DIR over a local .recall dir", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".recall"), 0o755)).To(Succeed())
			chdir(tmpDir)

			envDir := filepath.Join(tmpDir, "from-env")
			GinkgoT().Setenv(dotdir.EnvDir, envDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(envDir))
			Expect(envDir).To(BeADirectory())
		})

		It("falls back to a created home .recall dir", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())
			chdir(emptyDir)
			GinkgoT().Setenv("HOME", emptyDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(emptyDir, ".recall")))
		})
	})

	Describe("Path", func() {
		It("joins a file name onto the target", func() {
			p, err := m.Path(tmpDir, "config.toml")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(filepath.Join(tmpDir, "config.toml")))
		})
	})

	Describe("current session", func() {
		It("returns nil when none is selected", func() {
			cur, err := m.LoadCurrentSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cur).To(BeNil())
		})

		It("saves, loads and clears the selection", func() {
			Expect(m.SaveCurrentSession("abc", tmpDir)).To(Succeed())

			cur, err := m.LoadCurrentSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cur.SessionID).To(Equal("abc"))
			Expect(cur.SelectedAt).NotTo(BeZero())

			Expect(m.ClearCurrentSession(tmpDir)).To(Succeed())
			cur, err = m.LoadCurrentSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cur).To(BeNil())

			Expect(m.ClearCurrentSession(tmpDir)).To(Succeed())
		})

		It("rejects empty ids", func() {
			Expect(m.SaveCurrentSession(" ", tmpDir)).To(HaveOccurred())
		})

		It("returns error for invalid JSON", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("not json"), 0o600)).To(Succeed())
			cur, err := m.LoadCurrentSession(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(cur).To(BeNil())
		})
	})
})
