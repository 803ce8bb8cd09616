package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/internal/store"
)

var _ = Describe("Accounts and bookmarks", func() {
	var (
		ctx       context.Context
		accounts  *store.MemoryAccounts
		bookmarks *store.MemoryBookmarks
	)

	BeforeEach(func() {
		ctx = context.Background()
		accounts = store.NewMemoryAccounts()
		bookmarks = store.NewMemoryBookmarks()
	})

	Describe("SeedAccounts", func() {
		BeforeEach(func() {
			Expect(store.SeedAccounts(ctx, accounts, bookmarks, []string{"jhoeller", "jlong"})).To(Succeed())
		})

		It("should create every account", func() {
			account, err := accounts.FindByUsername(ctx, "jlong")
			Expect(err).NotTo(HaveOccurred())
			Expect(account.Username).To(Equal("jlong"))
			Expect(account.Password).To(Equal("password"))
		})

		It("should give each account two bookmarks", func() {
			found, err := bookmarks.FindByAccountUsername(ctx, "jhoeller")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(2))
			Expect(found[0].URI).To(Equal("http://bookmark.com/1/jhoeller"))
			Expect(found[1].URI).To(Equal("http://bookmark.com/2/jhoeller"))
			Expect(found[0].Description).To(Equal("A description"))
		})
	})

	Describe("MemoryAccounts", func() {
		It("should return ErrNotFound for an unknown user", func() {
			_, err := accounts.FindByUsername(ctx, "nobody")
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should keep the id when an account is saved twice", func() {
			first, err := accounts.Save(ctx, store.Account{Username: "dsyer"})
			Expect(err).NotTo(HaveOccurred())
			second, err := accounts.Save(ctx, store.Account{Username: "dsyer", Password: "changed"})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
		})

		It("should reject a blank username", func() {
			_, err := accounts.Save(ctx, store.Account{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MemoryBookmarks", func() {
		It("should find a bookmark by id", func() {
			saved, err := bookmarks.Save(ctx, store.Bookmark{Username: "pwebb", URI: "http://example.com"})
			Expect(err).NotTo(HaveOccurred())

			found, err := bookmarks.FindByID(ctx, saved.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.URI).To(Equal("http://example.com"))
		})

		It("should return ErrNotFound for an unknown id", func() {
			_, err := bookmarks.FindByID(ctx, 99)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should return an empty list for a user without bookmarks", func() {
			found, err := bookmarks.FindByAccountUsername(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeEmpty())
		})

		It("should reject a bookmark without uri", func() {
			_, err := bookmarks.Save(ctx, store.Bookmark{Username: "pwebb"})
			Expect(err).To(HaveOccurred())
		})
	})
})
