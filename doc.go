/*
Package csb provides statistical models for protein structure ensembles:
Gaussian mixture models fit by expectation maximization over 3D atomic
coordinate data, rigid-body superposition of point sets, and a family of
parametric probability density functions with maximum-likelihood estimators.

The mixture models follow Hirsch M, Habeck M. - Bioinformatics. 2008 Oct
1;24(19):2184-92. An ensemble of M structures with N atoms apiece is
described by K mixture components, each carrying a mean geometry, a
per-structure rigid superposition and an isotropic variance. SegmentMixture
and SegmentMixture2 partition atoms into rigid segments, ConformerMixture
partitions structures into conformers.
*/
package csb
