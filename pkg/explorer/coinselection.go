package explorer

import (
	"errors"
	"sort"
)

// ErrInsufficientFunds is returned when the utxos do not cover the target.
var ErrInsufficientFunds = errors.New(
	"error on target amount: total utxo amount does not cover target amount",
)

// SelectUnspents performs a coin selection over the given list of Utxos and
// returns a subset of them holding targetAsset to cover the targetAmount.
// For NativeAsset only outputs without asset allocations are eligible, so
// that plain payments never move allocations. Asset selection sums
// AssetValue instead of Value.
func SelectUnspents(
	utxos []Utxo,
	targetAmount uint64,
	targetAsset string,
) (coins []Utxo, change uint64, err error) {
	eligibleUtxos := make([]Utxo, 0)
	totalAmount := uint64(0)

	for i := range utxos {
		utxo := utxos[i]
		if utxo.Asset() == targetAsset {
			eligibleUtxos = append(eligibleUtxos, utxo)
		}
	}

	valueOf := func(u Utxo) uint64 {
		if targetAsset == NativeAsset {
			return u.Value()
		}
		return u.AssetValue()
	}

	indexes := getCoinsIndexes(targetAmount, eligibleUtxos, valueOf)

	selectedUtxos := make([]Utxo, 0)
	if len(indexes) <= 0 {
		return nil, 0, ErrInsufficientFunds
	}

	for _, v := range indexes {
		totalAmount += valueOf(eligibleUtxos[v])
		selectedUtxos = append(selectedUtxos, eligibleUtxos[v])
	}

	coins = selectedUtxos
	change = totalAmount - targetAmount

	return
}

// getCoinsIndexes method returns utxo indexes that are going to be selected
// the goal of the selection strategy is to select as less as possible utxo's
// until a 10x ratio
func getCoinsIndexes(
	targetAmount uint64, utxos []Utxo, valueOf func(Utxo) uint64,
) []int {
	sort.SliceStable(utxos, func(i, j int) bool {
		return valueOf(utxos[i]) > valueOf(utxos[j])
	})

	values := make([]uint64, 0, len(utxos))
	for _, v := range utxos {
		values = append(values, valueOf(v))
	}

	//actual strategy calculation output
	list := getBestCombination(values, targetAmount)

	//since list variable contains values,
	//indexes holding those values needs to be calculated
	return findIndexes(list, values)
}

func findIndexes(list []uint64, values []uint64) []int {
	var indexes []int
loop:
	for _, v := range list {
		for i, v1 := range values {
			if v == v1 {
				if isIndexOccupied(i, indexes) {
					continue
				}
				indexes = append(indexes, i)
				continue loop
			}
		}
	}
	return indexes
}

func isIndexOccupied(i int, list []int) bool {
	for _, v := range list {
		if v == i {
			return true
		}
	}
	return false
}

// maxCombinationSize bounds the exhaustive search, larger sets fall back to
// greedy accumulation of the biggest coins.
const maxCombinationSize = 16

// getCombination is calculating all combinations for 'size' the elements of src array
// number of combination formula -> len(src)! / size! * (len(src) - size)!
func getCombination(src []uint64, size int, offset int, combination []uint64) [][]uint64 {
	result := [][]uint64{}
	if size == 0 {
		temp := make([]uint64, len(combination))
		copy(temp, combination)
		return append(result, temp)
	}
	for i := offset; i <= len(src)-size; i++ {
		combination = append(combination, src[i])
		temp := getCombination(src, size-1, i+1, combination)
		result = append(result, temp...)
		combination = combination[:len(combination)-1]
	}
	return result
}

func sum(items []uint64) uint64 {
	var total uint64
	for _, v := range items {
		total += v
	}
	return total
}

// getBestCombination method implement strategy of selecting as less as possible
// elements from items slice so that sum of elements is equal or greater than
// target, with 10x ratio
// It uses bellow logic:
// 1. set size = 1
// 2. uses Recursion (getCombination) to get all combinations for size elements in the input Array.
// 3. check each combination if meet the requirements from 0 -> i, if yes, return it (finish)
// 4. if none of combination matches, then size++ and go to Step 2.
func getBestCombination(items []uint64, target uint64) []uint64 {
	if sum(items) < target {
		return []uint64{}
	}
	if len(items) > maxCombinationSize {
		return greedyCombination(items, target)
	}

	result := [][]uint64{}
	for i := 1; i < len(items)+1; i++ {
		result = append(result, getCombination(items, i, 0, nil)...)
		for j := 0; j < len(result); j++ {
			total := sum(result[j])
			if total < target {
				continue
			}
			if total == target {
				return result[j]
			}
			if total <= target*10 {
				return result[j]
			}
		}
	}

	//if there is no good combination just return first which is greater
	for _, v := range items {
		if v > target {
			return []uint64{v}
		}
	}

	return greedyCombination(items, target)
}

// greedyCombination expects items sorted in descending order.
func greedyCombination(items []uint64, target uint64) []uint64 {
	selected := []uint64{}
	total := uint64(0)
	for _, v := range items {
		if total >= target {
			break
		}
		selected = append(selected, v)
		total += v
	}
	if total < target {
		return []uint64{}
	}
	return selected
}
