package archive_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/picitalk/pkg/archive"
)

var _ = Describe("History", func() {
	var (
		ctx   context.Context
		store *archive.MemoryStore
		root  *archive.Node
		q1    *archive.Node
		a1    *archive.Node
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = archive.NewMemoryStore()
		root = archive.NewNode(archive.ImageEntry("img-digest", "upload"), "")
		q1 = archive.NewNode(archive.MessageEntry("user", "What is this?", ""), root.Hash)
		a1 = archive.NewNode(archive.MessageEntry("assistant", "A teapot.", "llava"), q1.Hash)
		for _, n := range []*archive.Node{root, q1, a1} {
			_, err := store.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("rebuilds a conversation oldest first", func() {
		h, err := archive.BuildHistory(ctx, store, a1.Hash)
		Expect(err).NotTo(HaveOccurred())

		Expect(h.HeadHash).To(Equal(a1.Hash))
		Expect(h.ImageDigest).To(Equal("img-digest"))
		Expect(h.Depth).To(Equal(3))
		Expect(h.Turns).To(HaveLen(2))
		Expect(h.Turns[0].Role).To(Equal("user"))
		Expect(h.Turns[0].Text).To(Equal("What is this?"))
		Expect(h.Turns[1].Model).To(Equal("llava"))
	})

	It("has no turns for a bare image", func() {
		h, err := archive.BuildHistory(ctx, store, root.Hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Turns).To(BeEmpty())
		Expect(h.Depth).To(Equal(1))
	})

	It("builds one history per leaf", func() {
		branch := archive.NewNode(archive.MessageEntry("user", "Is it hot?", ""), root.Hash)
		_, err := store.Put(ctx, branch)
		Expect(err).NotTo(HaveOccurred())

		histories, err := archive.Histories(ctx, store)
		Expect(err).NotTo(HaveOccurred())
		Expect(histories).To(HaveLen(2))
	})

	It("summarises the archive", func() {
		stats, err := archive.Summarize(ctx, store)
		Expect(err).NotTo(HaveOccurred())
		Expect(*stats).To(Equal(archive.Stats{TotalNodes: 3, RootCount: 1, LeafCount: 1}))
	})
})
