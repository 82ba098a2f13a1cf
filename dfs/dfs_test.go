package dfs

import "testing"

func buildCatalog(title string, files []FileEntry) []byte {
	image := make([]byte, catalogBytes)
	sector0 := image[0:sectorSize]
	sector1 := image[sectorSize : 2*sectorSize]

	copy(sector0[0:8], title)
	sector1[5] = byte(len(files) * 8)
	sector1[6] = 0
	sector1[7] = 200 // total sectors low byte

	for i, f := range files {
		nameEntry := sector0[8+i*8 : 8+i*8+8]
		copy(nameEntry, f.Name)
		for j := len(f.Name); j < 7; j++ {
			nameEntry[j] = ' '
		}
		nameEntry[7] = f.Directory

		infoEntry := sector1[8+i*8 : 8+i*8+8]
		infoEntry[0] = byte(f.LoadAddr)
		infoEntry[1] = byte(f.LoadAddr >> 8)
		infoEntry[2] = byte(f.ExecAddr)
		infoEntry[3] = byte(f.ExecAddr >> 8)
		infoEntry[4] = byte(f.Length)
		infoEntry[5] = byte(f.Length >> 8)
		infoEntry[7] = byte(f.StartSector)
	}
	return image
}

func TestReadCatalogBasic(t *testing.T) {
	image := buildCatalog("MYDISC", []FileEntry{
		{Name: "HELLO", Directory: '$', Length: 512, StartSector: 2},
	})

	cat, err := ReadCatalog(image)
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if cat.Title != "MYDISC" {
		t.Fatalf("Title = %q, want MYDISC", cat.Title)
	}
	if cat.FileCount != 1 {
		t.Fatalf("FileCount = %d, want 1", cat.FileCount)
	}
	if cat.Entries[0].Name != "HELLO" {
		t.Fatalf("Entries[0].Name = %q, want HELLO", cat.Entries[0].Name)
	}
	if cat.Entries[0].Length != 512 {
		t.Fatalf("Entries[0].Length = %d, want 512", cat.Entries[0].Length)
	}
}

func TestReadCatalogTooShort(t *testing.T) {
	_, err := ReadCatalog(make([]byte, 10))
	if err != ErrTooShort {
		t.Fatalf("err = %v, want ErrTooShort", err)
	}
}

func TestFreeSectorsAccountsForCatalogAndFiles(t *testing.T) {
	image := buildCatalog("X", []FileEntry{{Name: "A", Length: 256}})
	cat, _ := ReadCatalog(image)
	if cat.FreeSectors() != cat.TotalSectors-3 {
		t.Fatalf("FreeSectors = %d, want %d", cat.FreeSectors(), cat.TotalSectors-3)
	}
}
