package http

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Response messages shown to dashboard users.
const (
	msgNotFound          = "Data tidak ditemukan."
	msgDeleted           = "Data berhasil dihapus."
	msgUploaded          = "Upload berhasil."
	msgNoFiles           = "Tidak ada file."
	msgInvalidUpload     = "Format unggahan tidak valid."
	msgUploadTooLarge    = "Ukuran unggahan terlalu besar."
	msgInvalidDate       = "Format tanggal tidak valid, gunakan YYYY-MM-DD."
	msgInvalidID         = "ID tidak valid."
	msgInvalidRange      = "Parameter periode tidak valid"
	msgRateLimited       = "Terlalu banyak permintaan. Coba lagi nanti."
	msgSheetsQueued      = "Laporan dijadwalkan untuk dipublikasikan ke Google Sheets."
	msgMessagingDisabled = "Layanan antrean tidak aktif."
	msgSystemError       = "Terjadi kesalahan sistem."
	msgStatsError        = "Server error statistics."
	msgRecordsError      = "Server error records."
	msgReportError       = "Server error report."
	msgDeleteError       = "Gagal menghapus data."
	msgExportExcelError  = "Gagal export excel"
	msgExportYearlyError = "Gagal export tahunan"
	msgExportPDFError    = "Gagal export PDF"
	msgSheetsError       = "Gagal menjadwalkan publikasi Google Sheets."
	msgPetugasCreated    = "Petugas berhasil dibuat"
	msgPetugasUpdated    = "Data petugas berhasil diperbarui!"
	msgPetugasDeleted    = "Petugas dan datanya berhasil dihapus"
	msgPetugasNotFound   = "Petugas tidak ditemukan"
	msgPetugasExists     = "Username sudah ada!"
	msgInvalidUsername   = "Username tidak valid."
	msgInvalidBody       = "Format data tidak valid."
	msgPetugasListError  = "Gagal mengambil data"
	msgPetugasAddError   = "Gagal menambah petugas"
	msgPetugasSaveError  = "Server Error saat update petugas"
)

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// number renders a decimal as a JSON number.
func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func numbers(ds []decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = number(d)
	}
	return out
}
