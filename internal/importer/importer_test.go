package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"distress-detector/internal/service"
	"distress-detector/internal/storage"
)

type fakeCreator struct {
	inputs []service.ListingInput
}

func (f *fakeCreator) Create(_ context.Context, in service.ListingInput) (storage.Listing, error) {
	if in.Title == "boom" {
		return storage.Listing{}, errors.New("db down")
	}
	f.inputs = append(f.inputs, in)
	return storage.Listing{ID: int64(len(f.inputs)), Title: in.Title}, nil
}

type fakeDupes map[string]bool

func (f fakeDupes) ListingExists(_ context.Context, title, location string) (bool, error) {
	return f[title+"|"+strings.ToLower(location)], nil
}

const messyCSV = "\ufeff Title ,Location,Price (KES),Distress Score,Description\n" +
	"Bungalow,Karen,\"1,250,000\",99,urgent sale\n" +
	"No price,Kilimani,,1,\n" +
	"Bad price,Kilimani,abc,1,\n" +
	"Old plot,Ruiru,300000,2,\n" +
	"boom,Thika,10,0,\n" +
	",Syokimau,10,0,\n"

func TestImportMessyCSV(t *testing.T) {
	creator := &fakeCreator{}
	im := New(Options{ProgressEvery: 2}, creator, fakeDupes{"Old plot|ruiru": true}, zerolog.Nop())

	result, err := im.Import(context.Background(), strings.NewReader(messyCSV))
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if result.Total != 6 || result.Imported != 1 || result.Duplicates != 1 || result.Skipped != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}

	wantReasons := []string{"", ReasonMissing, ReasonInvalidPrice, "", ReasonFailed, ReasonMissing}
	for i, want := range wantReasons {
		if got := result.Rows[i].Reason; got != want {
			t.Fatalf("row %d reason = %q, want %q", i+1, got, want)
		}
	}
	if !result.Rows[3].Duplicate {
		t.Fatal("row 4 should be a duplicate")
	}

	if len(creator.inputs) != 1 {
		t.Fatalf("expected one create, got %d", len(creator.inputs))
	}
	in := creator.inputs[0]
	if !in.Price.Equal(decimal.NewFromInt(1250000)) {
		t.Fatalf("price = %s", in.Price)
	}
	if in.Source != storage.SourceCSV || in.Description != "urgent sale" {
		t.Fatalf("unexpected input: %+v", in)
	}
}

func TestImportDryRunDoesNotCreate(t *testing.T) {
	creator := &fakeCreator{}
	im := New(Options{DryRun: true}, creator, nil, zerolog.Nop())

	result, err := im.Import(context.Background(), strings.NewReader("title,location,price\nA,B,1\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 1 || len(creator.inputs) != 0 {
		t.Fatalf("dry run created listings: %+v", result)
	}
}

func TestImportRejectsBadHeader(t *testing.T) {
	im := New(Options{}, &fakeCreator{}, nil, zerolog.Nop())

	if _, err := im.Import(context.Background(), strings.NewReader("")); err == nil {
		t.Fatal("empty input should fail")
	}
	if _, err := im.Import(context.Background(), strings.NewReader("title,price\nA,1\n")); err == nil {
		t.Fatal("missing location column should fail")
	}
	if _, err := im.Import(context.Background(), strings.NewReader("title,location,price\n\"A,B,1\n")); err == nil {
		t.Fatal("malformed quoting should fail")
	}
}

func TestImportSkipsUnstorablePrices(t *testing.T) {
	creator := &fakeCreator{}
	im := New(Options{}, creator, nil, zerolog.Nop())

	csv := "title,location,price\n" +
		"Fractional,Karen,99.999\n" +
		"Huge,Karen,123456789012345\n" +
		"Fine,Karen,99.99\n"
	result, err := im.Import(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for i := 0; i < 2; i++ {
		if got := result.Rows[i].Reason; got != ReasonInvalidPrice {
			t.Fatalf("row %d reason = %q, want %q", i+1, got, ReasonInvalidPrice)
		}
	}
	if len(creator.inputs) != 1 || !creator.inputs[0].Price.Equal(decimal.RequireFromString("99.99")) {
		t.Fatalf("unexpected inputs: %+v", creator.inputs)
	}
}
