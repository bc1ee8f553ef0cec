//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrEthical07/mailAuth"
	"github.com/MrEthical07/mailAuth/store/postgres"
)

var _ = Describe("Store", Ordered, func() {
	var (
		ctx       context.Context
		container *tcpostgres.PostgresContainer
		pool      *pgxpool.Pool
		store     *postgres.Store
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("mailauth_test"),
			tcpostgres.WithUsername("mailauth"),
			tcpostgres.WithPassword("mailauth"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := postgres.NewMigrator(dsn)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = pgxpool.New(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())
		store = postgres.New(pool)
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("seeds the settings row and a default role", func() {
		setting, err := store.LoadSetting(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(setting).To(Equal(mailAuth.Setting{}))

		role, err := store.DefaultRole(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(role.IsDefault).To(BeTrue())
	})

	It("creates a user with its account", func() {
		role, err := store.DefaultRole(ctx)
		Expect(err).NotTo(HaveOccurred())

		u, err := store.CreateUser(ctx, mailAuth.NewUser{
			Email:        "alice@mail.test",
			PasswordHash: "hash",
			PasswordSalt: "salt",
			RoleID:       role.ID,
			AccountName:  "alice",
			CreatedAt:    time.Now().UTC(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(u.ID).To(BeNumerically(">", 0))

		acct, err := store.AccountByEmail(ctx, "alice@mail.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(acct.UserID).To(Equal(u.ID))

		_, err = store.CreateUser(ctx, mailAuth.NewUser{
			Email: "alice@mail.test", PasswordHash: "h", PasswordSalt: "s", RoleID: role.ID,
			CreatedAt: time.Now().UTC(),
		})
		Expect(err).To(MatchError(mailAuth.ErrDuplicate))
	})

	It("lets exactly one concurrent registration redeem a single-use key", func() {
		role, err := store.DefaultRole(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, `INSERT INTO reg_keys (code, remaining, role_id) VALUES ('ONCE', 1, $1)`, role.ID)
		Expect(err).NotTo(HaveOccurred())
		key, err := store.RegistrationKeyByCode(ctx, "ONCE")
		Expect(err).NotTo(HaveOccurred())

		const racers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := range racers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := store.CreateUser(ctx, mailAuth.NewUser{
					Email:        "racer" + string(rune('a'+i)) + "@mail.test",
					PasswordHash: "h",
					PasswordSalt: "s",
					RoleID:       role.ID,
					RegKeyID:     key.ID,
					CreatedAt:    time.Now().UTC(),
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				Expect(err).To(MatchError(mailAuth.ErrKeyNotRedeemable))
			}()
		}
		wg.Wait()

		Expect(succeeded).To(Equal(1))
		key, err = store.RegistrationKeyByCode(ctx, "ONCE")
		Expect(err).NotTo(HaveOccurred())
		Expect(key.Remaining).To(BeZero())
	})

	It("records last activity", func() {
		u, err := store.UserByEmail(ctx, "alice@mail.test")
		Expect(err).NotTo(HaveOccurred())

		at := time.Now().UTC().Truncate(time.Microsecond)
		Expect(store.TouchUser(ctx, u.ID, mailAuth.Activity{IP: "203.0.113.1", UserAgent: "test", At: at})).To(Succeed())

		u, err = store.UserByEmail(ctx, "alice@mail.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.LastActiveAt.Equal(at)).To(BeTrue())
	})
})
