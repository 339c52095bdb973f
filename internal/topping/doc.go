// Package topping defines composite pizza toppings and their canonical keys.
// A Topping is an ordered list of base toppings; two toppings are the same
// topping exactly when their keys are equal, so every comparison outside this
// package goes through Key.
package topping
