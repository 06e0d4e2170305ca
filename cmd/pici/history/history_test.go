package historycmder

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/picitalk/pkg/archive"
)

var _ = Describe("History Command", func() {
	var (
		ctx    context.Context
		tmpDir string
		dbPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "pici-history-test-*")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(tmpDir, "archive.db")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	// seed writes one image root with two diverging conversations and
	// returns the two leaf hashes.
	seed := func() (string, string) {
		store, err := archive.NewSQLiteStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		put := func(entry archive.Entry, parent string) string {
			node := archive.NewNode(entry, parent)
			_, err := store.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())
			return node.Hash
		}

		root := put(archive.ImageEntry("d1g35t0000000000", "upload"), "")
		q := put(archive.MessageEntry("user", "What is this?", ""), root)
		a1 := put(archive.MessageEntry("assistant", "A teapot.", "llava"), q)
		a2 := put(archive.MessageEntry("assistant", "A kettle.", "llava"), q)
		return a1, a2
	}

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewHistoryCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("prints every conversation branch", func() {
		seed()

		out, err := run("--db", dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("You: What is this?"))
		Expect(out).To(ContainSubstring("Assistant: A teapot."))
		Expect(out).To(ContainSubstring("Assistant: A kettle."))
		Expect(out).To(ContainSubstring("image d1g35t000000"))
	})

	It("prints a single conversation for a hash", func() {
		a1, _ := seed()

		out, err := run("--db", dbPath, a1)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Assistant: A teapot."))
		Expect(out).NotTo(ContainSubstring("A kettle."))
	})

	It("prints JSON", func() {
		_, a2 := seed()

		out, err := run("--db", dbPath, "--json", a2)
		Expect(err).NotTo(HaveOccurred())

		var histories []archive.History
		Expect(json.Unmarshal([]byte(out), &histories)).To(Succeed())
		Expect(histories).To(HaveLen(1))
		Expect(histories[0].HeadHash).To(Equal(a2))
		Expect(histories[0].Depth).To(Equal(3))
		Expect(histories[0].Turns).To(HaveLen(2))
	})

	It("reports an empty archive", func() {
		store, err := archive.NewSQLiteStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Close()).To(Succeed())

		out, err := run("--db", dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No archived conversations."))
	})

	It("fails for an unknown hash", func() {
		seed()

		_, err := run("--db", dbPath, "deadbeef")
		Expect(err).To(HaveOccurred())
		Expect(archive.IsNotFound(err)).To(BeTrue())
	})

	It("does not create a missing database", func() {
		_, err := run("--db", dbPath)
		Expect(err).To(HaveOccurred())

		_, statErr := os.Stat(dbPath)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("colors headers only when asked", func() {
		seed()

		out, err := run("--db", dbPath, "--color", "never")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("\x1b["))

		out, err = run("--db", dbPath, "--color", "always")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("\x1b["))

		_, err = run("--db", dbPath, "--color", "sometimes")
		Expect(err).To(MatchError(ContainSubstring("invalid --color")))
	})
})
