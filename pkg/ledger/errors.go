package ledger

import "github.com/hotsaucejake/ledger-sub000/internal/model"

// Kind identifies the category of an error returned from this package.
type Kind string

const (
	KindIncorrectPassphrase Kind = Kind(model.KindIncorrectPassphrase)
	KindLedgerNotFound      Kind = Kind(model.KindLedgerNotFound)
	KindCrypto              Kind = Kind(model.KindCrypto)
	KindValidation          Kind = Kind(model.KindValidation)
	KindSchema              Kind = Kind(model.KindSchema)
	KindStorage             Kind = Kind(model.KindStorage)
	KindNotFound            Kind = Kind(model.KindNotFound)
	KindInvalidInput        Kind = Kind(model.KindInvalidInput)
	KindIO                  Kind = Kind(model.KindIO)
	KindJSON                Kind = Kind(model.KindJSON)
)

// KindOf extracts the Kind of err, ok=false if err did not originate from
// this package's internals.
func KindOf(err error) (Kind, bool) {
	k, ok := model.KindOf(err)
	if !ok {
		return "", false
	}
	return Kind(k), true
}
