package reserve

var (
	programID  = []byte("flashreserve/reserve/v1")
	seedConfig = []byte("config")
	seedVault  = []byte("vault")

	configKey    = []byte("reserve/config")
	recordPrefix = []byte("reserve/record/")
)

func recordKey(caller [20]byte) []byte {
	key := make([]byte, len(recordPrefix)+len(caller))
	copy(key, recordPrefix)
	copy(key[len(recordPrefix):], caller[:])
	return key
}
