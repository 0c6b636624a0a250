// Package ratelimit paces invocations of the external feed source so a long
// multi-account run stays under the remote site's request budget.
package ratelimit
