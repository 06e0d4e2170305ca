package archive_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/picitalk/pkg/archive"
)

func describeStore(name string, newStore func() archive.Store) {
	Describe(name, func() {
		var (
			store archive.Store
			ctx   context.Context
		)

		put := func(nodes ...*archive.Node) {
			for _, n := range nodes {
				_, err := store.Put(ctx, n)
				Expect(err).NotTo(HaveOccurred())
			}
		}

		BeforeEach(func() {
			ctx = context.Background()
			store = newStore()
		})

		AfterEach(func() {
			Expect(store.Close()).To(Succeed())
		})

		Describe("Put and Get", func() {
			It("stores and retrieves a node", func() {
				node := archive.NewNode(archive.MessageEntry("user", "Hello", ""), "")

				isNew, err := store.Put(ctx, node)
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeTrue())

				got, err := store.Get(ctx, node.Hash)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Hash).To(Equal(node.Hash))
				Expect(got.Entry).To(Equal(node.Entry))
				Expect(got.ParentHash).To(BeNil())
				Expect(got.Verify()).To(BeTrue())
			})

			It("keeps the parent link", func() {
				root := archive.NewNode(archive.ImageEntry("img", "upload"), "")
				child := archive.NewNode(archive.MessageEntry("user", "q", ""), root.Hash)
				put(root, child)

				got, err := store.Get(ctx, child.Hash)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ParentHash).NotTo(BeNil())
				Expect(*got.ParentHash).To(Equal(root.Hash))
			})

			It("returns ErrNotFound for an unknown hash", func() {
				_, err := store.Get(ctx, "nonexistent")
				Expect(err).To(HaveOccurred())
				Expect(archive.IsNotFound(err)).To(BeTrue())
			})

			It("is idempotent for duplicate puts", func() {
				node := archive.NewNode(archive.ImageEntry("img", "upload"), "")

				first, err := store.Put(ctx, node)
				Expect(err).NotTo(HaveOccurred())
				second, err := store.Put(ctx, node)
				Expect(err).NotTo(HaveOccurred())

				Expect(first).To(BeTrue())
				Expect(second).To(BeFalse())

				nodes, err := store.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(nodes).To(HaveLen(1))
			})

			It("rejects nil nodes", func() {
				_, err := store.Put(ctx, nil)
				Expect(err).To(MatchError(ContainSubstring("nil node")))
			})
		})

		Describe("Has", func() {
			It("reports presence", func() {
				node := archive.NewNode(archive.ImageEntry("img", "upload"), "")
				put(node)

				Expect(store.Has(ctx, node.Hash)).To(BeTrue())
				Expect(store.Has(ctx, "nonexistent")).To(BeFalse())
			})
		})

		Describe("traversal", func() {
			var root, q1, a1, q2, a2alt *archive.Node

			BeforeEach(func() {
				root = archive.NewNode(archive.ImageEntry("img", "upload"), "")
				q1 = archive.NewNode(archive.MessageEntry("user", "What is this?", ""), root.Hash)
				a1 = archive.NewNode(archive.MessageEntry("assistant", "A teapot.", "llava"), q1.Hash)
				q2 = archive.NewNode(archive.MessageEntry("user", "What colour?", ""), a1.Hash)
				a2alt = archive.NewNode(archive.MessageEntry("assistant", "A kettle.", "llava"), q1.Hash)
				put(root, q1, a1, q2, a2alt)
			})

			It("lists all nodes in insertion order", func() {
				nodes, err := store.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(nodes).To(HaveLen(5))
				Expect(nodes[0].Hash).To(Equal(root.Hash))
				Expect(nodes[4].Hash).To(Equal(a2alt.Hash))
			})

			It("finds roots", func() {
				roots, err := store.Roots(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(roots).To(HaveLen(1))
				Expect(roots[0].Hash).To(Equal(root.Hash))
			})

			It("finds leaves of every branch", func() {
				leaves, err := store.Leaves(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(leaves).To(HaveLen(2))
				Expect([]string{leaves[0].Hash, leaves[1].Hash}).To(ConsistOf(q2.Hash, a2alt.Hash))
			})

			It("finds children", func() {
				children, err := store.Children(ctx, q1.Hash)
				Expect(err).NotTo(HaveOccurred())
				Expect(children).To(HaveLen(2))

				none, err := store.Children(ctx, q2.Hash)
				Expect(err).NotTo(HaveOccurred())
				Expect(none).To(BeEmpty())
			})

			It("walks ancestry newest first", func() {
				path, err := store.Ancestry(ctx, q2.Hash)
				Expect(err).NotTo(HaveOccurred())
				Expect(path).To(HaveLen(4))
				Expect(path[0].Entry.Text).To(Equal("What colour?"))
				Expect(path[3].Entry.Type).To(Equal(archive.TypeImage))
			})

			It("computes depth", func() {
				Expect(store.Depth(ctx, root.Hash)).To(Equal(0))
				Expect(store.Depth(ctx, q2.Hash)).To(Equal(3))
			})

			It("fails ancestry for unknown nodes", func() {
				_, err := store.Ancestry(ctx, "nonexistent")
				Expect(archive.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("empty store", func() {
			It("returns empty slices", func() {
				Expect(store.List(ctx)).To(BeEmpty())
				Expect(store.Roots(ctx)).To(BeEmpty())
				Expect(store.Leaves(ctx)).To(BeEmpty())
			})
		})
	})
}

var _ = Describe("Stores", func() {
	describeStore("MemoryStore", func() archive.Store {
		return archive.NewMemoryStore()
	})

	describeStore("SQLiteStore", func() archive.Store {
		s, err := archive.NewSQLiteStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
		return s
	})

	Describe("SQLiteStore on disk", func() {
		It("persists across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "archive.db")

			s, err := archive.NewSQLiteStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			node := archive.NewNode(archive.ImageEntry("img", "camera"), "")
			_, err = s.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())

			reopened, err := archive.NewSQLiteStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			got, err := reopened.Get(ctx, node.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Entry.Source).To(Equal("camera"))
		})
	})

	Describe("Open", func() {
		It("uses memory for an empty path", func() {
			s, err := archive.Open("")
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()
			Expect(s).To(BeAssignableToTypeOf(&archive.MemoryStore{}))
		})
	})
})
