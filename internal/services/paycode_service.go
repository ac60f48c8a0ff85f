package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"paygate/internal/models/response_models"
	"paygate/internal/repositories"
	"paygate/pkg/paycode"
	"paygate/pkg/utils"
)

// crcTag is the EMV tag and length that introduce the checksum value.
const crcTag = "6304"

type PaycodeServiceInterface interface {
	Validate(code string) response_models.PaycodeReport
	Mint(ctx context.Context, transactionID uuid.UUID, payload string) (response_models.MintedPaycode, error)
}

type PaycodeService struct {
	txns repositories.TransactionRepository
	log  *zap.Logger
}

func NewPaycodeService(txns repositories.TransactionRepository, log *zap.Logger) *PaycodeService {
	return &PaycodeService{txns: txns, log: log.Named("paycode")}
}

func (s *PaycodeService) Validate(code string) response_models.PaycodeReport {
	report := paycode.FullValidate(code)
	errs := report.Errors
	if errs == nil {
		errs = []string{}
	}
	return response_models.PaycodeReport{
		Valid:         report.Valid,
		FormatValid:   report.FormatValid,
		CRCValid:      report.CRCValid,
		CurrentCRC:    report.CurrentCRC,
		CalculatedCRC: report.CalculatedCRC,
		Errors:        errs,
	}
}

// Seal terminates payload with its checksum. It accepts a payload ending in
// the bare checksum tag as well as a complete code whose checksum is replaced.
func Seal(payload string) (string, error) {
	payload = paycode.Normalize(payload)
	n := len(payload)
	switch {
	case n >= 8 && payload[n-8:n-4] == crcTag:
		return paycode.AddOrReplaceChecksum(payload)
	case strings.HasSuffix(payload, crcTag):
		return payload + paycode.Format(paycode.Calculate(payload)), nil
	default:
		return "", fmt.Errorf("%w: payload must end with the checksum tag %s", utils.ErrInvalidPaymentCode, crcTag)
	}
}

func (s *PaycodeService) Mint(ctx context.Context, transactionID uuid.UUID, payload string) (response_models.MintedPaycode, error) {
	txn, err := s.txns.FindByID(ctx, transactionID)
	if err != nil {
		return response_models.MintedPaycode{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if txn == nil {
		return response_models.MintedPaycode{}, utils.ErrTransactionNotFound
	}

	code, err := Seal(payload)
	if err != nil {
		return response_models.MintedPaycode{}, err
	}
	if problems := paycode.ValidateStructure(code); len(problems) > 0 {
		return response_models.MintedPaycode{}, fmt.Errorf("%w: %s", utils.ErrInvalidPaymentCode, strings.Join(problems, "; "))
	}

	if err := s.txns.SavePaymentCode(ctx, txn.ID, code); err != nil {
		return response_models.MintedPaycode{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	crc, _ := paycode.ExtractChecksum(code)
	s.log.Info("payment code minted", zap.String("transaction_id", txn.ID.String()), zap.String("crc", crc))

	return response_models.MintedPaycode{TransactionID: txn.ID.String(), Code: code, CRC: crc}, nil
}
