package domain

// ArchiveKind is a supported download archive format
type ArchiveKind int

const (
	ArchiveZip ArchiveKind = iota
	ArchiveSevenZip
	ArchiveRar
	ArchiveTarGz
	ArchiveTarXz
)

func (k ArchiveKind) String() string {
	switch k {
	case ArchiveZip:
		return "zip"
	case ArchiveSevenZip:
		return "7z"
	case ArchiveRar:
		return "rar"
	case ArchiveTarGz:
		return "tar.gz"
	case ArchiveTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}
