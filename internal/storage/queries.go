package storage

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"green/internal/core"
)

const (
	recordsTable = "waste_records"
	petugasTable = "petugas"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Placeholder sq.PlaceholderFormat
	// WeightColumn is the select expression yielding weight_kg as text.
	WeightColumn string
	EncodeTime   func(time.Time) any
	EncodeWeight func(core.WasteRecord) any
}

// RecordQueries builds the record and staff statements for one dialect.
type RecordQueries struct {
	d  Dialect
	sb sq.StatementBuilderType
}

func NewRecordQueries(d Dialect) RecordQueries {
	return RecordQueries{d: d, sb: sq.StatementBuilder.PlaceholderFormat(d.Placeholder)}
}

func (q RecordQueries) columns() []string {
	return []string{
		"id", "batch_id", "area_label", "area", "item_label", "status",
		q.d.WeightColumn, "petugas_name", "recorded_at", "uploaded_at",
	}
}

func (q RecordQueries) Insert(r core.WasteRecord) sq.InsertBuilder {
	return q.sb.Insert(recordsTable).
		Columns("batch_id", "area_label", "area", "item_label", "status", "weight_kg", "petugas_name", "recorded_at", "uploaded_at").
		Values(r.BatchID, r.AreaLabel, string(r.Area), r.ItemLabel, string(r.Status), q.d.EncodeWeight(r), r.PetugasName, q.d.EncodeTime(r.RecordedAt), q.d.EncodeTime(r.UploadedAt))
}

func (q RecordQueries) ListRange(from, to time.Time) sq.SelectBuilder {
	return q.sb.Select(q.columns()...).
		From(recordsTable).
		Where(sq.GtOrEq{"recorded_at": q.d.EncodeTime(from)}).
		Where(sq.Lt{"recorded_at": q.d.EncodeTime(to)}).
		OrderBy("recorded_at ASC", "id ASC")
}

func (q RecordQueries) Delete(id int64) sq.DeleteBuilder {
	return q.sb.Delete(recordsTable).Where(sq.Eq{"id": id})
}

func (q RecordQueries) ByBatch(batchID string) sq.SelectBuilder {
	return q.sb.Select(q.columns()...).
		From(recordsTable).
		Where(sq.Eq{"batch_id": batchID, "synced_at": nil}).
		OrderBy("id ASC")
}

func (q RecordQueries) Pending(limit int) sq.SelectBuilder {
	return q.sb.Select(q.columns()...).
		From(recordsTable).
		Where(sq.Eq{"synced_at": nil}).
		OrderBy("id ASC").
		Limit(uint64(limit))
}

func (q RecordQueries) MarkSynced(ids []int64, at time.Time) sq.UpdateBuilder {
	return q.sb.Update(recordsTable).
		Set("synced_at", q.d.EncodeTime(at)).
		Where(sq.Eq{"id": ids})
}

func (q RecordQueries) ListPetugas() sq.SelectBuilder {
	return q.sb.Select("id", "username", "created_at").
		From(petugasTable).
		OrderBy("id DESC")
}

func (q RecordQueries) InsertPetugas(username string, at time.Time) sq.InsertBuilder {
	return q.sb.Insert(petugasTable).
		Columns("username", "created_at").
		Values(username, q.d.EncodeTime(at))
}

func (q RecordQueries) PetugasUsername(id int64) sq.SelectBuilder {
	return q.sb.Select("username").From(petugasTable).Where(sq.Eq{"id": id})
}

// PetugasTaken selects the ids other than exceptID using username.
func (q RecordQueries) PetugasTaken(username string, exceptID int64) sq.SelectBuilder {
	return q.sb.Select("id").
		From(petugasTable).
		Where(sq.Eq{"username": username}).
		Where(sq.NotEq{"id": exceptID}).
		Limit(1)
}

func (q RecordQueries) RenamePetugas(id int64, username string) sq.UpdateBuilder {
	return q.sb.Update(petugasTable).
		Set("username", username).
		Where(sq.Eq{"id": id})
}

func (q RecordQueries) DeletePetugas(id int64) sq.DeleteBuilder {
	return q.sb.Delete(petugasTable).Where(sq.Eq{"id": id})
}

func (q RecordQueries) DeleteByPetugas(username string) sq.DeleteBuilder {
	return q.sb.Delete(recordsTable).Where(sq.Eq{"petugas_name": username})
}
