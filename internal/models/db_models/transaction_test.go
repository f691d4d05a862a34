package db_models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allpartyrental/pkg/utils"
)

func TestTransactionCanTransitionTo(t *testing.T) {
	allStatuses := []TransactionStatus{
		TxnStatusPending, TxnStatusEscrow, TxnStatusProviderReview,
		TxnStatusCompleted, TxnStatusRefunded, TxnStatusDeclined, TxnStatusDisputed,
	}

	allowed := map[TransactionStatus][]TransactionStatus{
		TxnStatusPending:        {TxnStatusEscrow, TxnStatusDeclined, TxnStatusRefunded},
		TxnStatusEscrow:         {TxnStatusProviderReview, TxnStatusRefunded},
		TxnStatusProviderReview: {TxnStatusCompleted, TxnStatusRefunded, TxnStatusDisputed},
		TxnStatusDisputed:       {TxnStatusCompleted, TxnStatusRefunded},
		TxnStatusCompleted:      {},
		TxnStatusRefunded:       {},
		TxnStatusDeclined:       {},
	}

	for from, targets := range allowed {
		legal := make(map[TransactionStatus]bool, len(targets))
		for _, to := range targets {
			legal[to] = true
		}

		for _, to := range allStatuses {
			txn := &Transaction{Status: from}
			err := txn.CanTransitionTo(to)
			if legal[to] {
				assert.NoError(t, err, "%s -> %s should be legal", from, to)
			} else {
				require.Error(t, err, "%s -> %s should be rejected", from, to)

				var ite *utils.IllegalTransitionError
				require.ErrorAs(t, err, &ite)
				assert.Equal(t, string(from), ite.From)
				assert.Equal(t, string(to), ite.To)
			}
		}
	}
}

func TestTransactionIsTerminal(t *testing.T) {
	terminal := map[TransactionStatus]bool{
		TxnStatusCompleted: true,
		TxnStatusRefunded:  true,
		TxnStatusDeclined:  true,
	}

	for _, status := range []TransactionStatus{
		TxnStatusPending, TxnStatusEscrow, TxnStatusProviderReview,
		TxnStatusCompleted, TxnStatusRefunded, TxnStatusDeclined, TxnStatusDisputed,
	} {
		txn := &Transaction{Status: status}
		assert.Equal(t, terminal[status], txn.IsTerminal(), "status %s", status)
	}
}
