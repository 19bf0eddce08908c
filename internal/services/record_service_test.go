package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"green/internal/core"
	"green/internal/ingest"
	"green/internal/metrics"
	"green/internal/report"
)

var fixedNow = time.Date(2024, 3, 17, 3, 0, 0, 0, time.UTC)

const goodCSV = "Area,Nama Item,Status,Bobot (Kg),Petugas\n" +
	"Area Kantor,Kertas,Anorganik Terpilah,\"1,5\",Sari\n" +
	"Area Makan,Sisa Makanan,Organik Terpilah,4,Budi\n" +
	"Area Parkir,,Tidak Terkelola,2,Budi\n"

func newRecordService(store *fakeStore, opts ...RecordServiceOption) *RecordService {
	opts = append([]RecordServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewRecordService(store, ingest.NewParser(report.DefaultSchema()), core.Civil(), opts...)
}

func TestRecordService_Ingest(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	inv := &countingInvalidator{}
	svc := newRecordService(store, WithIngestPublisher(pub), WithInvalidator(inv), WithRecordMetrics(metrics.New()))

	res, err := svc.Ingest(context.Background(), []UploadFile{
		csvFile("pagi.csv", goodCSV),
		csvFile("kosong.csv", "Area,Nama Item,Status,Bobot (Kg)\n"),
		csvFile("salah.csv", "Lokasi,Nama Item,Bobot (Kg)\nx,y,1\n"),
		brokenFile("rusak.csv"),
	}, "")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if res.Stored != 3 {
		t.Fatalf("Stored = %d, want 3", res.Stored)
	}
	want := []FileResult{
		{File: "pagi.csv", Status: FileSuccess, Count: 3},
		{File: "kosong.csv", Status: FileError, Reason: "File kosong"},
		{File: "salah.csv", Status: FileError, Reason: `Kolom wajib tidak ada: "Area"`},
	}
	for i, w := range want {
		if res.Files[i] != w {
			t.Errorf("Files[%d] = %+v, want %+v", i, res.Files[i], w)
		}
	}
	if res.Files[3].Status != FileError || !strings.Contains(res.Files[3].Reason, "disk gone") {
		t.Errorf("Files[3] = %+v", res.Files[3])
	}

	recs := store.all()
	for _, r := range recs {
		if r.BatchID != res.BatchID {
			t.Errorf("record batch = %q, want %q", r.BatchID, res.BatchID)
		}
		if !r.RecordedAt.Equal(fixedNow) {
			t.Errorf("recorded_at = %v, want ingestion time", r.RecordedAt)
		}
	}
	if recs[0].WeightKg.String() != "1.5" {
		t.Errorf("weight = %s, want 1.5", recs[0].WeightKg)
	}
	if len(pub.batches) != 1 || pub.batches[0] != res.BatchID || pub.counts[0] != 3 {
		t.Errorf("published = %v %v", pub.batches, pub.counts)
	}
	if inv.calls != 1 {
		t.Errorf("invalidations = %d, want 1", inv.calls)
	}
}

func TestRecordService_BlankItemReachesResidu(t *testing.T) {
	store := &fakeStore{}
	svc := newRecordService(store)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, []UploadFile{csvFile("a.csv", goodCSV)}, ""); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	schema := report.DefaultSchema()
	g, err := newReportService(store).Grid(ctx, report.RangeQuery{Kind: report.RangeMonth, Year: 2024, Month: 3})
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	parking := -1
	for i, a := range schema.Areas {
		if a.Area == core.AreaParking {
			parking = i
		}
	}
	residu := decimal.Zero
	for _, row := range g.Rows {
		residu = residu.Add(row.Areas[parking].Items[schema.Fallback])
	}
	if schema.Categories[schema.Fallback].Name != "Residu" || residu.String() != "2" {
		t.Errorf("parking %s = %s, want 2", schema.Categories[schema.Fallback].Name, residu)
	}
	if g.Total().String() != "7.5" {
		t.Errorf("Total = %s, want 7.5", g.Total())
	}
}

func TestRecordService_IngestManualDate(t *testing.T) {
	store := &fakeStore{}
	svc := newRecordService(store)

	if _, err := svc.Ingest(context.Background(), []UploadFile{csvFile("a.csv", goodCSV)}, "2024-03-02"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	want := time.Date(2024, 3, 2, 0, 0, 0, 0, core.Civil())
	for _, r := range store.all() {
		if !r.RecordedAt.Equal(want) {
			t.Errorf("recorded_at = %v, want %v", r.RecordedAt, want)
		}
		if !r.UploadedAt.Equal(fixedNow) {
			t.Errorf("uploaded_at = %v, want %v", r.UploadedAt, fixedNow)
		}
	}
}

func TestRecordService_IngestErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   []UploadFile
		date    string
		wantErr error
	}{
		{name: "no files", files: nil, wantErr: ErrNoFiles},
		{name: "bad manual date", files: []UploadFile{csvFile("a.csv", goodCSV)}, date: "2024-02-30", wantErr: ingest.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			_, err := newRecordService(store).Ingest(context.Background(), tt.files, tt.date)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
			if !IsIngestError(err) {
				t.Errorf("IsIngestError(%v) = false", err)
			}
			if len(store.all()) != 0 {
				t.Errorf("nothing should be stored")
			}
		})
	}
}

func TestRecordService_PublishFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{failWith: errors.New("circuit breaker is open")}
	res, err := newRecordService(store, WithIngestPublisher(pub)).
		Ingest(context.Background(), []UploadFile{csvFile("a.csv", goodCSV)}, "")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Stored != 2 || len(store.all()) != 2 {
		t.Fatalf("records should be stored despite publish failure")
	}
}

func TestRecordService_StoreFailureMarksFile(t *testing.T) {
	store := &fakeStore{failAdd: errors.New("database is locked")}
	pub := &fakePublisher{}
	res, err := newRecordService(store, WithIngestPublisher(pub)).
		Ingest(context.Background(), []UploadFile{csvFile("a.csv", goodCSV)}, "")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Files[0].Status != FileError || res.Stored != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(pub.batches) != 0 {
		t.Error("nothing stored, nothing should be published")
	}
}

func TestRecordService_Delete(t *testing.T) {
	store := &fakeStore{}
	inv := &countingInvalidator{}
	svc := newRecordService(store, WithInvalidator(inv))
	if _, err := svc.Ingest(context.Background(), []UploadFile{csvFile("a.csv", goodCSV)}, ""); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if err := svc.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete(1) error = %v", err)
	}
	if len(store.all()) != 1 {
		t.Fatalf("records left = %d, want 1", len(store.all()))
	}
	if err := svc.Delete(context.Background(), 99); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("Delete(99) error = %v, want ErrRecordNotFound", err)
	}
	if inv.calls != 2 {
		t.Errorf("invalidations = %d, want 2 (ingest and delete)", inv.calls)
	}
}
