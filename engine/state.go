package engine

import (
	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/model"
)

// BatchState is the Engine's in-memory, per-invocation bookkeeping. It is
// created fresh at the start of RunBatch and discarded at the
// end; nothing here is ever persisted. The journal and on-chain state are
// the only durable signals that survive across invocations.
type BatchState struct {
	progress   map[int64]amount.Amount
	txids      map[int64][]string
	successful []string
}

func newBatchState() *BatchState {
	return &BatchState{
		progress: make(map[int64]amount.Amount),
		txids:    make(map[int64][]string),
	}
}

func (b *BatchState) recordBroadcast(obligationID int64, txid string, paid amount.Amount) {
	b.progress[obligationID] += paid
	b.txids[obligationID] = append(b.txids[obligationID], txid)
	b.successful = append(b.successful, txid)
}

func (b *BatchState) isFullyPaid(o model.Obligation) bool {
	return b.progress[o.ID] >= o.Amount
}

func (b *BatchState) progressOf(id int64) amount.Amount {
	return b.progress[id]
}

func (b *BatchState) txidsOf(id int64) []string {
	return b.txids[id]
}
