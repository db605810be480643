package util

// AssignShards distributes n items round-robin across shardCount shards and
// returns the shard index for each item position. Assignment is positional,
// not content-based: shards only balance load, they carry no meaning.
func AssignShards(n, shardCount int) []int {
	if shardCount < 1 {
		shardCount = 1
	}
	shards := make([]int, n)
	for i := range shards {
		shards[i] = i % shardCount
	}
	return shards
}
