package handler

import (
	"time"

	"selns/internal/registration"
	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

type commitRequest struct {
	Hash string `json:"hash"`
}

type batchCommitRequest struct {
	Hashes []string `json:"hashes"`
}

type recordPayload struct {
	Kind  string `json:"kind"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

type registerRequest struct {
	Name          string          `json:"name"`
	Owner         string          `json:"owner"`
	DurationSecs  int64           `json:"duration_seconds"`
	Secret        string          `json:"secret"`
	Resolver      string          `json:"resolver,omitempty"`
	Records       []recordPayload `json:"records,omitempty"`
	ReverseRecord bool            `json:"reverse_record,omitempty"`
	Payment       uint64          `json:"payment"`
}

type renewRequest struct {
	Name         string `json:"name"`
	DurationSecs int64  `json:"duration_seconds"`
	Payment      uint64 `json:"payment"`
}

type batchRenewRequest struct {
	Items []struct {
		Name         string `json:"name"`
		DurationSecs int64  `json:"duration_seconds"`
	} `json:"items"`
	Payment uint64 `json:"payment"`
}

type batchNamesRequest struct {
	Names        []string `json:"names"`
	DurationSecs int64    `json:"duration_seconds,omitempty"`
}

type reserveRequest struct {
	Name string `json:"name"`
}

type registerReservedRequest struct {
	Name         string `json:"name"`
	Owner        string `json:"owner"`
	DurationSecs int64  `json:"duration_seconds"`
}

type setPricingRequest struct {
	AnnualRates          map[string]uint64 `json:"annual_rates"`
	MultiYearDiscountBps uint64            `json:"multi_year_discount_bps"`
}

type withdrawRequest struct {
	To string `json:"to"`
}

func (r registerRequest) toParams() (registration.Params, error) {
	owner, err := domain.ParsePrincipal(r.Owner)
	if err != nil {
		return registration.Params{}, err
	}
	secret, err := namehash.ParseHex(r.Secret)
	if err != nil {
		return registration.Params{}, dErrors.New(dErrors.CodeBadRequest, "secret must be a 32-byte hex value")
	}

	var resolver domain.Principal
	if r.Resolver != "" {
		resolver, err = domain.ParsePrincipal(r.Resolver)
		if err != nil {
			return registration.Params{}, err
		}
	}

	records := make([]state.Record, 0, len(r.Records))
	for _, rec := range r.Records {
		records = append(records, state.Record{
			Kind:  state.RecordKind(rec.Kind),
			Key:   rec.Key,
			Value: rec.Value,
		})
	}

	return registration.Params{
		Name:          r.Name,
		Owner:         owner,
		Duration:      time.Duration(r.DurationSecs) * time.Second,
		Secret:        secret,
		Resolver:      resolver,
		Records:       records,
		ReverseRecord: r.ReverseRecord,
	}, nil
}
