package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const videosSchema = `
CREATE TABLE movie (
    idMovie INTEGER PRIMARY KEY AUTOINCREMENT,
    idFile INTEGER,
    c00 TEXT,
    c22 TEXT
);
CREATE TABLE settings (
    idFile INTEGER PRIMARY KEY,
    Deinterlace INTEGER,
    ViewMode INTEGER,
    ZoomAmount REAL,
    PixelRatio REAL,
    VerticalShift REAL,
    AudioStream INTEGER,
    SubtitleStream INTEGER,
    SubtitleDelay REAL,
    SubtitlesOn INTEGER,
    Brightness REAL,
    Contrast REAL,
    Gamma REAL,
    VolumeAmplification REAL,
    AudioDelay REAL,
    ResumeTime INTEGER,
    Sharpness REAL,
    NoiseReduction REAL,
    NonLinStretch INTEGER,
    PostProcess INTEGER,
    ScalingMethod INTEGER,
    DeinterlaceMode TEXT,
    StereoMode INTEGER,
    StereoInvert INTEGER,
    VideoStream INTEGER,
    TonemapMethod INTEGER,
    TonemapParam REAL,
    Orientation INTEGER,
    CenterMixLevel INTEGER
);
CREATE TABLE streamdetails (
    idFile INTEGER,
    iStreamType INTEGER,
    strAudioLanguage TEXT
);
`

// NewVideosDB creates a temp SQLite database with the subset of Kodi's
// MyVideos schema the store touches and returns its path.
func NewVideosDB(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "MyVideos116.db")
	db := openVideosDB(t, path)
	defer db.Close()
	if _, err := db.Exec(videosSchema); err != nil {
		t.Fatalf("create videos schema: %v", err)
	}
	return path
}

// InsertMovie adds a movie row pointing at mediaPath and returns its file id.
func InsertMovie(t testing.TB, dbPath string, fileID int64, title, mediaPath string) {
	t.Helper()
	db := openVideosDB(t, dbPath)
	defer db.Close()
	if _, err := db.Exec(`INSERT INTO movie (idFile, c00, c22) VALUES (?, ?, ?)`, fileID, title, mediaPath); err != nil {
		t.Fatalf("insert movie: %v", err)
	}
}

// InsertAudioStream records one audio stream detail row for a file.
func InsertAudioStream(t testing.TB, dbPath string, fileID int64, lang string) {
	t.Helper()
	db := openVideosDB(t, dbPath)
	defer db.Close()
	if _, err := db.Exec(`INSERT INTO streamdetails (idFile, iStreamType, strAudioLanguage) VALUES (?, 1, ?)`, fileID, lang); err != nil {
		t.Fatalf("insert streamdetails: %v", err)
	}
}

// InsertSettings seeds a minimal settings row for a file.
func InsertSettings(t testing.TB, dbPath string, fileID int64, audio, subtitle int, subsOn bool) {
	t.Helper()
	db := openVideosDB(t, dbPath)
	defer db.Close()
	on := 0
	if subsOn {
		on = 1
	}
	if _, err := db.Exec(`INSERT INTO settings (idFile, AudioStream, SubtitleStream, SubtitlesOn) VALUES (?, ?, ?, ?)`, fileID, audio, subtitle, on); err != nil {
		t.Fatalf("insert settings: %v", err)
	}
}

func openVideosDB(t testing.TB, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open videos db: %v", err)
	}
	return db
}
