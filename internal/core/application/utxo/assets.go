package utxo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/explorer"
	"github.com/pollum-io/sysweb3-sub000/pkg/mathutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	// a new asset is minted only once its creation is buried under at least
	// one more block.
	mintConfirmations = 2
	// the steps of an NFT creation wait for the previous one to confirm.
	stepConfirmations = 1
)

// assetJob runs the steps of one asset protocol against a single session.
type assetJob struct {
	id      string
	session *ports.UTXOSession
	feeRate uint64
	log     *log.Entry
}

func (s *service) newAssetJob(
	ctx context.Context, protocol string, feeRate uint64,
) (*assetJob, error) {
	if s.assetBuilder == nil {
		return nil, ErrAssetBuilderUnavailable
	}
	session, err := s.sessions.UTXOSession(ctx)
	if err != nil {
		return nil, err
	}
	feeRate, err = s.feeRate(ctx, session, feeRate)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	return &assetJob{
		id:      id,
		session: session,
		feeRate: feeRate,
		log:     log.WithFields(log.Fields{"job": id, "protocol": protocol}),
	}, nil
}

// request returns the funding context of the next step, with fresh utxos
// and change address.
func (j *assetJob) request(
	ctx context.Context, allocations map[string]ports.AssetAllocation,
) (ports.AssetTxRequest, error) {
	utxos, err := j.session.Explorer.GetUtxos(ctx, j.session.Signer.Xpub())
	if err != nil {
		return ports.AssetTxRequest{}, err
	}
	change, err := nextChangeOutput(ctx, j.session)
	if err != nil {
		return ports.AssetTxRequest{}, err
	}
	for guid, allocation := range allocations {
		if allocation.ChangeAddress == "" {
			allocation.ChangeAddress = change.address
			allocations[guid] = allocation
		}
	}
	return ports.AssetTxRequest{
		Xpub:          j.session.Signer.Xpub(),
		Utxos:         utxos,
		ChangeAddress: change.address,
		FeeRate:       j.feeRate,
		Allocations:   allocations,
	}, nil
}

// submit signs and broadcasts an asset transaction built by the asset
// builder.
func (j *assetJob) submit(ctx context.Context, step string, tx *ports.AssetTx) (string, error) {
	if tx == nil || tx.Psbt == nil {
		return "", fmt.Errorf("%s: asset builder returned no transaction", step)
	}
	txHex, err := signAndExtract(ctx, j.session, tx.Psbt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", step, err)
	}
	txid, err := j.session.Explorer.BroadcastTransaction(ctx, txHex)
	if err != nil {
		return "", fmt.Errorf("%s: %w", step, err)
	}
	j.log.Infof("%s broadcast in tx %s", step, txid)
	return txid, nil
}

// confirmedAsset returns the asset guid if it exists and the account holds
// a confirmed output carrying it.
func (j *assetJob) confirmedAsset(
	ctx context.Context, guid string, utxos []explorer.Utxo,
) (*ports.AssetInfo, error) {
	asset, err := j.session.Explorer.GetAsset(ctx, guid)
	if err != nil {
		return nil, err
	}
	for _, u := range utxos {
		if u.Asset() == guid && u.IsConfirmed() {
			return asset, nil
		}
	}
	return nil, fmt.Errorf("%w: no confirmed output of asset %s", domain.ErrAssetNotFound, guid)
}

func (j *assetJob) receiver(address string) string {
	if address != "" {
		return address
	}
	return j.session.Account.Address
}

// CreateToken creates a new asset. When an initial supply lower than the
// max supply is requested, it is minted once the creation confirms.
func (s *service) CreateToken(ctx context.Context, spec TokenSpec) (*AssetResult, error) {
	if err := validateSupply(spec.Precision, spec.MaxSupply, spec.InitialSupply); err != nil {
		return nil, err
	}
	job, err := s.newAssetJob(ctx, "create-token", spec.FeeRate)
	if err != nil {
		return nil, err
	}

	maxSupply := mathutil.ToBaseUnits(spec.MaxSupply, int32(spec.Precision)).Uint64()
	guid, txid, err := s.createAsset(ctx, job, ports.AssetSpec{
		Symbol:                spec.Symbol,
		Description:           spec.Description,
		Contract:              spec.Contract,
		Precision:             spec.Precision,
		MaxSupply:             maxSupply,
		UpdateCapabilityFlags: ports.DefaultUpdateCapabilityFlags,
	})
	if err != nil {
		return nil, err
	}
	result := &AssetResult{Guid: guid, Txids: []string{txid}}

	if !spec.InitialSupply.IsPositive() || !spec.InitialSupply.LessThan(spec.MaxSupply) {
		return result, nil
	}

	if _, err := s.waitForConfirmations(
		ctx, job.session.Explorer, txid, mintConfirmations,
	); err != nil {
		return result, err
	}
	mintTxid, err := s.mint(ctx, job, guid, spec.InitialSupply, job.receiver(spec.Receiver))
	if err != nil {
		return result, err
	}
	result.Txids = append(result.Txids, mintTxid)
	return result, nil
}

// MintToken issues amount of asset guid to receiver, the active account by
// default.
func (s *service) MintToken(
	ctx context.Context, guid string, amount decimal.Decimal, receiver string,
) (*AssetResult, error) {
	job, err := s.newAssetJob(ctx, "mint-token", 0)
	if err != nil {
		return nil, err
	}
	txid, err := s.mint(ctx, job, guid, amount, job.receiver(receiver))
	if err != nil {
		return nil, err
	}
	return &AssetResult{Guid: guid, Txids: []string{txid}}, nil
}

// CreateNFT creates a single unit asset, mints it to the receiver and then
// freezes it, each step starting once the previous one confirmed.
func (s *service) CreateNFT(ctx context.Context, spec NFTSpec) (*AssetResult, error) {
	if spec.Precision < 0 || spec.Precision > maxAssetPrecision {
		return nil, fmt.Errorf("%w: precision %d", ErrInvalidAmount, spec.Precision)
	}
	job, err := s.newAssetJob(ctx, "create-nft", spec.FeeRate)
	if err != nil {
		return nil, err
	}

	unit := decimal.NewFromInt(1)
	guid, txid, err := s.createAsset(ctx, job, ports.AssetSpec{
		Symbol:                spec.Symbol,
		Description:           spec.Description,
		Contract:              spec.Contract,
		Precision:             spec.Precision,
		MaxSupply:             mathutil.ToBaseUnits(unit, int32(spec.Precision)).Uint64(),
		UpdateCapabilityFlags: ports.DefaultUpdateCapabilityFlags,
	})
	if err != nil {
		return nil, err
	}
	result := &AssetResult{Guid: guid, Txids: []string{txid}}

	if _, err := s.waitForConfirmations(
		ctx, job.session.Explorer, txid, stepConfirmations,
	); err != nil {
		return result, err
	}
	mintTxid, err := s.mint(ctx, job, guid, unit, job.receiver(spec.Receiver))
	if err != nil {
		return result, err
	}
	result.Txids = append(result.Txids, mintTxid)

	if _, err := s.waitForConfirmations(
		ctx, job.session.Explorer, mintTxid, stepConfirmations,
	); err != nil {
		return result, err
	}
	frozen := uint8(0)
	updateTxid, err := s.update(ctx, job, guid, ports.AssetUpdate{
		UpdateCapabilityFlags: &frozen,
	})
	if err != nil {
		return result, err
	}
	result.Txids = append(result.Txids, updateTxid)
	return result, nil
}

// UpdateToken changes the mutable fields of asset guid.
func (s *service) UpdateToken(
	ctx context.Context, guid string, update ports.AssetUpdate,
) (*AssetResult, error) {
	job, err := s.newAssetJob(ctx, "update-token", 0)
	if err != nil {
		return nil, err
	}
	txid, err := s.update(ctx, job, guid, update)
	if err != nil {
		return nil, err
	}
	return &AssetResult{Guid: guid, Txids: []string{txid}}, nil
}

// TransferOwnership moves the ownership of asset guid to newOwner.
func (s *service) TransferOwnership(
	ctx context.Context, guid, newOwner string,
) (*AssetResult, error) {
	if newOwner == "" {
		return nil, ErrInvalidAddress
	}
	job, err := s.newAssetJob(ctx, "transfer-ownership", 0)
	if err != nil {
		return nil, err
	}
	req, err := job.request(ctx, map[string]ports.AssetAllocation{
		guid: {Outputs: []ports.AssetOutput{{Address: newOwner}}},
	})
	if err != nil {
		return nil, err
	}
	if _, err := job.confirmedAsset(ctx, guid, req.Utxos); err != nil {
		return nil, err
	}

	tx, err := s.assetBuilder.TransferOwnership(ctx, req, guid, newOwner)
	if err != nil {
		return nil, err
	}
	txid, err := job.submit(ctx, "transfer ownership", tx)
	if err != nil {
		return nil, err
	}
	return &AssetResult{Guid: guid, Txids: []string{txid}}, nil
}

// SendToken sends amount of asset guid to the given address.
func (s *service) SendToken(
	ctx context.Context, guid string, amount decimal.Decimal, to string,
) (*AssetResult, error) {
	if to == "" {
		return nil, ErrInvalidAddress
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	job, err := s.newAssetJob(ctx, "send-token", 0)
	if err != nil {
		return nil, err
	}
	utxos, err := job.session.Explorer.GetUtxos(ctx, job.session.Signer.Xpub())
	if err != nil {
		return nil, err
	}
	asset, err := job.confirmedAsset(ctx, guid, utxos)
	if err != nil {
		return nil, err
	}

	value := mathutil.ToBaseUnits(amount, int32(asset.Precision)).Uint64()
	if balance := assetBalance(utxos, guid); balance < value {
		return nil, fmt.Errorf(
			"%w: asset %s balance %d, amount %d", domain.ErrInsufficientFunds, guid, balance, value,
		)
	}

	req, err := job.request(ctx, map[string]ports.AssetAllocation{
		guid: {Outputs: []ports.AssetOutput{{Address: to, Value: value}}},
	})
	if err != nil {
		return nil, err
	}
	tx, err := s.assetBuilder.SendAllocations(ctx, req)
	if err != nil {
		return nil, err
	}
	txid, err := job.submit(ctx, "send allocation", tx)
	if err != nil {
		return nil, err
	}
	return &AssetResult{Guid: guid, Txids: []string{txid}}, nil
}

func (s *service) createAsset(
	ctx context.Context, job *assetJob, spec ports.AssetSpec,
) (string, string, error) {
	req, err := job.request(ctx, nil)
	if err != nil {
		return "", "", err
	}
	tx, err := s.assetBuilder.CreateAsset(ctx, req, spec)
	if err != nil {
		return "", "", err
	}
	if tx != nil && tx.Guid == "" {
		return "", "", fmt.Errorf("asset builder returned no guid")
	}
	txid, err := job.submit(ctx, "create asset", tx)
	if err != nil {
		return "", "", err
	}
	return tx.Guid, txid, nil
}

func (s *service) mint(
	ctx context.Context, job *assetJob, guid string, amount decimal.Decimal, receiver string,
) (string, error) {
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	utxos, err := job.session.Explorer.GetUtxos(ctx, job.session.Signer.Xpub())
	if err != nil {
		return "", err
	}
	asset, err := job.confirmedAsset(ctx, guid, utxos)
	if err != nil {
		return "", err
	}

	value := mathutil.ToBaseUnits(amount, int32(asset.Precision)).Uint64()
	if asset.MaxSupply > 0 && asset.TotalSupply+value > asset.MaxSupply {
		return "", fmt.Errorf(
			"%w: minting %d exceeds max supply %d", ErrInvalidAmount, value, asset.MaxSupply,
		)
	}

	req, err := job.request(ctx, map[string]ports.AssetAllocation{
		guid: {Outputs: []ports.AssetOutput{{Address: receiver, Value: value}}},
	})
	if err != nil {
		return "", err
	}
	tx, err := s.assetBuilder.IssueAsset(ctx, req)
	if err != nil {
		return "", err
	}
	return job.submit(ctx, "mint asset", tx)
}

func (s *service) update(
	ctx context.Context, job *assetJob, guid string, update ports.AssetUpdate,
) (string, error) {
	req, err := job.request(ctx, map[string]ports.AssetAllocation{
		guid: {Outputs: []ports.AssetOutput{{Address: job.session.Account.Address}}},
	})
	if err != nil {
		return "", err
	}
	if _, err := job.confirmedAsset(ctx, guid, req.Utxos); err != nil {
		return "", err
	}
	tx, err := s.assetBuilder.UpdateAsset(ctx, req, guid, update)
	if err != nil {
		return "", err
	}
	return job.submit(ctx, "update asset", tx)
}

const maxAssetPrecision = 8

func validateSupply(precision int, maxSupply, initialSupply decimal.Decimal) error {
	if precision < 0 || precision > maxAssetPrecision {
		return fmt.Errorf("%w: precision %d", ErrInvalidAmount, precision)
	}
	if !maxSupply.IsPositive() {
		return fmt.Errorf("%w: max supply", ErrInvalidAmount)
	}
	if initialSupply.IsNegative() || initialSupply.GreaterThan(maxSupply) {
		return fmt.Errorf("%w: initial supply", ErrInvalidAmount)
	}
	return nil
}

func assetBalance(utxos []explorer.Utxo, guid string) uint64 {
	total := uint64(0)
	for _, u := range utxos {
		if u.Asset() == guid {
			total += u.AssetValue()
		}
	}
	return total
}
