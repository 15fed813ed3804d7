package pir

import (
	"math/rand"
)

func RandSource() *rand.Rand {
	return rand.New(rand.NewSource(17))
}

func MakeRows(src *rand.Rand, nRows, rowLen int) []Row {
	db := make([]Row, nRows)
	for i := range db {
		db[i] = make([]byte, rowLen)
		src.Read(db[i])
		db[i][0] = byte(i % 256)
		if rowLen > 1 {
			db[i][1] = 'A' + byte(i%256)
		}
	}
	return db
}

func MakeDB(nRows int, rowLen int) StaticDB {
	return *StaticDBFromRows(MakeRows(RandSource(), nRows, rowLen))
}
