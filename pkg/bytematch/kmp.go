// Package bytematch implements Knuth-Morris-Pratt substring search over raw
// byte slices. It is used to detect encoded line breaks inside sampled file
// content and is exported as a general primitive.
package bytematch

// NotFound is returned by IndexOf when the needle does not occur.
const NotFound = -1

// IndexOf returns the offset of the first occurrence of needle in haystack,
// or NotFound. An empty needle or an empty haystack never matches.
func IndexOf(haystack, needle []byte) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return NotFound
	}
	failure := computeFailure(needle)
	j := 0
	for i := 0; i < len(haystack); i++ {
		for j > 0 && needle[j] != haystack[i] {
			j = failure[j-1]
		}
		if needle[j] == haystack[i] {
			j++
		}
		if j == len(needle) {
			return i - len(needle) + 1
		}
	}
	return NotFound
}

// Contains reports whether needle occurs in haystack.
func Contains(haystack, needle []byte) bool {
	return IndexOf(haystack, needle) != NotFound
}

// computeFailure builds the failure table by matching the needle against
// itself: failure[i] is the length of the longest proper prefix of
// needle[:i+1] that is also its suffix.
func computeFailure(needle []byte) []int {
	failure := make([]int, len(needle))
	j := 0
	for i := 1; i < len(needle); i++ {
		for j > 0 && needle[j] != needle[i] {
			j = failure[j-1]
		}
		if needle[j] == needle[i] {
			j++
		}
		failure[i] = j
	}
	return failure
}
