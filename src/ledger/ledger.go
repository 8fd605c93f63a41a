// Package ledger holds the per-wallet token balance and every operation that
// may move it. Balances never go below zero and confirmed deposits are
// idempotent per transaction reference.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"gorm.io/gorm"
)

// DefaultBalance is granted to every wallet on first touch, read or write.
const DefaultBalance = 10

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")

	// errReplayedCredit aborts the credit transaction when the txRef was
	// already journaled; the unique index catches the concurrent case.
	errReplayedCredit = errors.New("ledger: credit already applied")
)

type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Balance returns the wallet's balance, lazily creating the wallet with the
// default starting balance when unknown.
func (s *Service) Balance(ctx context.Context, wallet string) (float64, error) {
	user, err := ensureUser(s.db.WithContext(ctx), wallet)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Credit applies a confirmed deposit. Calling it again with the same txRef is
// a no-op returning the current balance.
func (s *Service) Credit(ctx context.Context, wallet string, amount float64, txRef string) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if strings.TrimSpace(txRef) == "" {
		return 0, fmt.Errorf("ledger: credit requires a transaction reference")
	}

	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing types.BalanceCredit
		switch err := tx.First(&existing, "tx_ref = ?", txRef).Error; {
		case err == nil:
			return errReplayedCredit
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if err := tx.Create(&types.BalanceCredit{
			Wallet: wallet,
			Amount: amount,
			TxRef:  txRef,
		}).Error; err != nil {
			return err
		}

		var user types.User
		switch err := tx.First(&user, "wallet = ?", wallet).Error; {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&types.User{Wallet: wallet, Balance: DefaultBalance + amount}).Error
		case err != nil:
			return err
		}
		return tx.Model(&types.User{}).Where("wallet = ?", wallet).
			Update("balance", gorm.Expr("balance + ?", amount)).Error
	})
	if errors.Is(err, errReplayedCredit) || errors.Is(err, gorm.ErrDuplicatedKey) {
		// Replayed confirmation; balance already reflects this deposit.
		return s.Balance(ctx, wallet)
	}
	if err != nil {
		return 0, err
	}
	return s.Balance(ctx, wallet)
}

// Debit spends amount from the wallet. Fails with ErrInsufficientBalance when
// the balance does not cover it, leaving the balance untouched.
func (s *Service) Debit(ctx context.Context, wallet string, amount float64) (float64, error) {
	var balance float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = DebitTx(tx, wallet, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// DebitTx is the transaction-composable form of Debit, used when the spend
// must commit or roll back together with a dependent write. The conditional
// update serializes concurrent debits without an explicit row lock.
func DebitTx(tx *gorm.DB, wallet string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if _, err := ensureUser(tx, wallet); err != nil {
		return 0, err
	}

	res := tx.Model(&types.User{}).
		Where("wallet = ? AND balance >= ?", wallet, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrInsufficientBalance
	}

	var user types.User
	if err := tx.First(&user, "wallet = ?", wallet).Error; err != nil {
		return 0, err
	}
	return user.Balance, nil
}

func ensureUser(tx *gorm.DB, wallet string) (types.User, error) {
	var user types.User
	err := tx.Where(types.User{Wallet: wallet}).
		Attrs(types.User{Balance: DefaultBalance}).
		FirstOrCreate(&user).Error
	return user, err
}
